package contracts

// QuoteState is the per-quote outcome of a batch run
type QuoteState string

const (
	QuoteOK      QuoteState = "ok"
	QuoteSkipped QuoteState = "skipped" // no or insufficient data
	QuoteFailed  QuoteState = "failed"
)

// DefaultUSDQuotes is the quote set used by ops actions when none is given
var DefaultUSDQuotes = []string{
	"EUR", "GBP", "AUD", "NZD", "JPY", "CNY", "CHF", "CAD", "MXN", "INR", "BRL", "KRW",
}
