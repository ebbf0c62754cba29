package shell

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/atinyakov/GophShop/internal/client/checkout"
	"github.com/atinyakov/GophShop/internal/models"
)

// prompter asks questions on out and reads single-line answers from in.
type prompter struct {
	scanner *bufio.Scanner
	out     io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{scanner: bufio.NewScanner(in), out: out}
}

// line reads the next input line. ok is false at end of input.
func (p *prompter) line() (string, bool) {
	if !p.scanner.Scan() {
		return "", false
	}
	return strings.TrimSpace(p.scanner.Text()), true
}

// ask prints label and returns the answer, or def when the answer is empty.
func (p *prompter) ask(label, def string) string {
	if def != "" {
		fmt.Fprintf(p.out, "%s [%s]: ", label, def)
	} else {
		fmt.Fprintf(p.out, "%s: ", label)
	}
	answer, _ := p.line()
	if answer == "" {
		return def
	}
	return answer
}

// credentials asks for an e-mail and password.
func (p *prompter) credentials(email string) (string, string) {
	if email == "" {
		email = p.ask("Email", "")
	}
	return email, p.ask("Password", "")
}

// checkoutForm walks through the shipping and payment questions. Card
// details are only asked for card payments.
func (p *prompter) checkoutForm(name, email string) checkout.Form {
	first, last, _ := strings.Cut(name, " ")

	var f checkout.Form
	f.Shipping = models.ShippingAddress{
		FirstName: p.ask("First name", first),
		LastName:  p.ask("Last name", last),
		Email:     p.ask("Email", email),
		Phone:     p.ask("Phone", ""),
		Address:   p.ask("Address", ""),
		City:      p.ask("City", ""),
		State:     p.ask("State", ""),
		ZipCode:   p.ask("ZIP code", ""),
		Country:   p.ask("Country", "US"),
	}
	f.Payment.Method = p.ask("Payment method (credit/paypal/cod)", "credit")
	if f.Payment.Method == "credit" {
		f.Payment.CardNumber = p.ask("Card number", "")
		f.Payment.ExpiryDate = p.ask("Expiry date (MM/YY)", "")
		f.Payment.CVV = p.ask("CVV", "")
		f.Payment.NameOnCard = p.ask("Name on card", name)
	}
	return f
}
