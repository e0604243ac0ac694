package sqlite

import (
	"database/sql/driver"
	"fmt"
	"sync"

	"github.com/cloo-solutions/ragindex/internal/vectorstore"
	sqlitedriver "modernc.org/sqlite"
)

var (
	registerOnce sync.Once
	registerErr  error
)

// RegisterFunctions makes vec_cosine available to connections opened after
// the call. Safe to call more than once.
func RegisterFunctions() error {
	registerOnce.Do(func() {
		registerErr = sqlitedriver.RegisterDeterministicScalarFunction("vec_cosine", 2, vecCosine)
	})
	return registerErr
}

func vecCosine(_ *sqlitedriver.FunctionContext, args []driver.Value) (driver.Value, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("vec_cosine: expected 2 arguments, got %d", len(args))
	}
	a, err := blobArg(args[0])
	if err != nil {
		return nil, err
	}
	b, err := blobArg(args[1])
	if err != nil {
		return nil, err
	}
	if a == nil || b == nil {
		return nil, nil
	}
	if len(a) != len(b) {
		return nil, fmt.Errorf("vec_cosine: dimension mismatch %d vs %d", len(a), len(b))
	}
	return vectorstore.Cosine(a, b), nil
}

func blobArg(arg driver.Value) ([]float32, error) {
	switch v := arg.(type) {
	case nil:
		return nil, nil
	case []byte:
		return decodeVector(v)
	default:
		return nil, fmt.Errorf("vec_cosine: unsupported argument type %T, want BLOB", arg)
	}
}
