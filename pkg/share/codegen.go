package share

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"strconv"
	"time"

	"github.com/filely/filely/pkg/storage/database"
	"github.com/filely/filely/pkg/storage/database/models"
)

// Share codes are 6-digit numeric, 100000 through 999999. A space of 900k
// values keeps collision retries negligible only while the number of
// concurrently live shares stays small; deployments expecting more than a few
// thousand live shares should widen the alphabet before raising the limits.
const (
	codeMin  = 100_000
	codeSpan = 900_000
)

// CodeGenerator draws random codes and checks them against live shares. The
// check-then-use window is closed by InsertShare's own live-uniqueness check;
// the generator only keeps the expected number of insert retries near zero.
type CodeGenerator struct {
	db       database.Database
	attempts int
}

func NewCodeGenerator(db database.Database, attempts int) *CodeGenerator {
	if attempts <= 0 {
		attempts = 10
	}
	return &CodeGenerator{db: db, attempts: attempts}
}

func (g *CodeGenerator) Generate(ctx context.Context) (string, error) {
	for i := 0; i < g.attempts; i++ {
		code, err := randomCode()
		if err != nil {
			return "", err
		}

		existing, err := g.db.GetShareByCode(ctx, code)
		if errors.Is(err, models.ErrNotFound) {
			return code, nil
		}
		if err != nil {
			return "", err
		}

		// An expired row that the reclaimer has not swept yet does not
		// block reuse of its code.
		if !existing.Live(time.Now()) {
			return code, nil
		}
	}

	return "", ErrCodeSpaceExhausted
}

func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeSpan))
	if err != nil {
		return "", err
	}

	return strconv.FormatInt(n.Int64()+codeMin, 10), nil
}
