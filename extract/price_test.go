package extract

import (
	"testing"
)

func TestPriceShaped(t *testing.T) {
	shaped := []string{"1.299", "R$ 1.299,99", "488", "99,90", "$49.99", "1.299,99"}
	for _, s := range shaped {
		if !PriceShaped(s) {
			t.Errorf("%q should be price-shaped", s)
		}
	}

	notShaped := []string{"", "Frete grátis", "12x de R$ 108,33 sem juros no cartão", "Fone Bluetooth JBL"}
	for _, s := range notShaped {
		if PriceShaped(s) {
			t.Errorf("%q should not be price-shaped", s)
		}
	}
}

func TestNearestPriceNode(t *testing.T) {
	// WHAT: the shallowest price-shaped node wins; struck=true finds the
	// pre-discount price inside <s>.
	doc := parse(t, `
<div class="card">
  <span class="label">Oferta do dia</span>
  <div class="price-box"><span class="value">1.049</span></div>
  <s><span class="old">1.299</span></s>
</div>`)

	n := NearestPriceNode(doc, false)
	if n == nil {
		t.Fatal("no current price node found")
	}
	if got := Text(n); got != "1.049" {
		t.Errorf("current price node: got %q", got)
	}

	n = NearestPriceNode(doc, true)
	if n == nil {
		t.Fatal("no struck price node found")
	}
	if got := Text(n); got != "1.299" {
		t.Errorf("struck price node: got %q", got)
	}
}

func TestNearestPriceNodeMissing(t *testing.T) {
	doc := parse(t, `<div><span>sem preço aqui</span></div>`)
	if NearestPriceNode(doc, false) != nil {
		t.Error("found a price node in priceless markup")
	}
}
