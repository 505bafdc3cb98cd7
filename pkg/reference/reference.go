package reference

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"

	"event-booking/pkg/clock"
)

const (
	BookingNamespace     = "ANB"
	TransactionNamespace = "TRX"

	DefaultBookingSuffix     = 8
	DefaultTransactionSuffix = 8

	alphabet   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	dateLayout = "060102"
)

// largest multiple of len(alphabet) that fits in a byte; bytes at or above it are rejected
const maxUnbiased = 256 - (256 % len(alphabet))

// Generator produces references of the form <namespace>-<yyMMdd>-<suffix>.
// It never checks storage for collisions; unique constraints do that.
type Generator struct {
	mu                sync.Mutex
	random            io.Reader
	clock             clock.Clock
	bookingSuffix     int
	transactionSuffix int
}

type Option func(*Generator)

// WithRandom replaces crypto/rand as the byte source (seeded readers in tests).
func WithRandom(r io.Reader) Option {
	return func(g *Generator) {
		if r != nil {
			g.random = r
		}
	}
}

// WithSuffixLengths widens the random suffixes. Values below the defaults are ignored.
func WithSuffixLengths(booking, transaction int) Option {
	return func(g *Generator) {
		if booking > g.bookingSuffix {
			g.bookingSuffix = booking
		}
		if transaction > g.transactionSuffix {
			g.transactionSuffix = transaction
		}
	}
}

func NewGenerator(clk clock.Clock, opts ...Option) *Generator {
	g := &Generator{
		random:            rand.Reader,
		clock:             clk,
		bookingSuffix:     DefaultBookingSuffix,
		transactionSuffix: DefaultTransactionSuffix,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Booking returns e.g. ANB-230615-XY4Z7QK2.
func (g *Generator) Booking() (string, error) {
	return g.generate(BookingNamespace, g.bookingSuffix)
}

// Transaction returns e.g. TRX-230615-AB12CD34.
func (g *Generator) Transaction() (string, error) {
	return g.generate(TransactionNamespace, g.transactionSuffix)
}

func (g *Generator) generate(namespace string, length int) (string, error) {
	suffix, err := g.randomString(length)
	if err != nil {
		return "", fmt.Errorf("generate %s reference: %w", namespace, err)
	}
	return fmt.Sprintf("%s-%s-%s", namespace, g.clock.Now().Format(dateLayout), suffix), nil
}

func (g *Generator) randomString(length int) (string, error) {
	out := make([]byte, 0, length)
	buf := make([]byte, length*2)

	// io.Reader implementations are not guaranteed to be goroutine safe
	g.mu.Lock()
	defer g.mu.Unlock()

	for len(out) < length {
		if _, err := io.ReadFull(g.random, buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if int(b) >= maxUnbiased {
				continue
			}
			out = append(out, alphabet[int(b)%len(alphabet)])
			if len(out) == length {
				break
			}
		}
	}
	return string(out), nil
}
