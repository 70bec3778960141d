package pricing

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// brl formats amounts the way agents paste them into chat: "R$ 1.234,50".
var brl = message.NewPrinter(language.BrazilianPortuguese)

// FormatBRL renders an amount in Brazilian reais.
func FormatBRL(v float64) string {
	return brl.Sprintf("R$ %.2f", v)
}

// Summary renders the shareable quote text sent to the end customer.
func Summary(brand string, q Quote) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*Resumo da Experiência - %s*\n\n", brand)
	for _, l := range q.Lines {
		fmt.Fprintf(&b, "*Passeio:* %s\n", l.TourName)
		fmt.Fprintf(&b, "*Destino:* %s\n", l.Destination)
	}
	a, c, i := q.Pax()
	fmt.Fprintf(&b, "*Passageiros:* %d Adulto(s)", a)
	if c > 0 {
		fmt.Fprintf(&b, ", %d Criança(s)", c)
	}
	if i > 0 {
		fmt.Fprintf(&b, ", %d Bebê(s)", i)
	}
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "*Valor Total:* %s\n\n", FormatBRL(q.Total))
	b.WriteString("_Reservas sujeitas a disponibilidade._")
	return b.String()
}
