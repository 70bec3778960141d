package model

import "time"

// Attachment is a file linked from a notice.
type Attachment struct {
	URL      string `json:"url"`
	Filename string `json:"filename,omitempty"`
}

// Notice is a bulletin-board (mural) item.  IsRead is computed per viewer
// from the notice's read-by column and is never stored.
type Notice struct {
	ID                   string       `json:"id"`
	Title                string       `json:"title"`
	Category             string       `json:"category,omitempty"`
	Content              string       `json:"content,omitempty"`
	PublishedAt          *time.Time   `json:"publishedAt,omitempty"`
	IsNew                bool         `json:"isNew"`
	IsRead               bool         `json:"isRead"`
	RequiresConfirmation bool         `json:"requiresConfirmation"`
	Attachments          []Attachment `json:"attachments,omitempty"`
}

// ReadReceipt records that a user acknowledged a notice.
//
// Fields:
//
//	NoticeID  – notice_id
//	UserEmail – user_email
//	UserName  – user_name
//	AgencyID  – agency_id
//	AgencyName – resolved for admin views only, never stored
//	Timestamp – timestamp (RFC 3339)
type ReadReceipt struct {
	ID         string    `json:"id,omitempty"`
	NoticeID   string    `json:"noticeId"`
	UserEmail  string    `json:"userEmail"`
	UserName   string    `json:"userName"`
	AgencyID   string    `json:"agencyId"`
	AgencyName string    `json:"agencyName,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}
