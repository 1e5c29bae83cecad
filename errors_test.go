package pgwire_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pgkit/pgwire"
)

func TestPgErrorKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code string
		kind pgwire.ErrorKind
	}{
		{"08006", pgwire.KindConnectionException},
		{"22012", pgwire.KindDataException},
		{"23505", pgwire.KindIntegrityConstraintViolation},
		{"25P02", pgwire.KindInvalidTransactionState},
		{"28P01", pgwire.KindInvalidAuthorizationSpecification},
		{"3D000", pgwire.KindInvalidCatalogName},
		{"42601", pgwire.KindSyntaxErrorOrAccessRuleViolation},
		{"42P01", pgwire.KindSyntaxErrorOrAccessRuleViolation},
		{"53300", pgwire.KindInsufficientResources},
		{"55P03", pgwire.KindObjectNotInPrerequisiteState},
		{"57014", pgwire.KindOperatorIntervention},
		{"40001", pgwire.KindTransactionRollback},
		{"0A000", pgwire.KindFeatureNotSupported},
		{"58030", pgwire.KindSystemError},
		{"XX001", pgwire.KindInternalError},
		{"ZZ999", pgwire.KindOther},
		{"P0001", pgwire.KindOther},
	}

	for _, tt := range tests {
		pgErr := &pgwire.PgError{Code: tt.code}
		assert.Equal(t, tt.kind, pgErr.Kind(), "SQLSTATE %s", tt.code)
		assert.Equal(t, tt.code, pgErr.SQLState())
	}
}

func TestLeafHelpers(t *testing.T) {
	t.Parallel()

	uniqueErr := &pgwire.PgError{Severity: "ERROR", Code: "23505", Message: "duplicate key"}
	assert.True(t, pgwire.IsUniqueViolation(uniqueErr))
	assert.True(t, pgwire.IsUniqueViolation(fmt.Errorf("exec: %w", uniqueErr)))
	assert.False(t, pgwire.IsForeignKeyViolation(uniqueErr))
	assert.Equal(t, pgwire.KindIntegrityConstraintViolation, uniqueErr.Kind())

	assert.True(t, pgwire.IsForeignKeyViolation(&pgwire.PgError{Code: "23503"}))
	assert.True(t, pgwire.IsNotNullViolation(&pgwire.PgError{Code: "23502"}))
	assert.True(t, pgwire.IsSerializationFailure(&pgwire.PgError{Code: "40001"}))

	assert.False(t, pgwire.IsUniqueViolation(errors.New("23505")))
}

func TestPgErrorMessage(t *testing.T) {
	t.Parallel()

	pgErr := &pgwire.PgError{Severity: "ERROR", Code: "42703", Message: `column "nope" does not exist`}
	assert.Equal(t, `ERROR: column "nope" does not exist (SQLSTATE 42703)`, pgErr.Error())
}

func TestLocalErrorsAreNotPgErrors(t *testing.T) {
	t.Parallel()

	var pgErr *pgwire.PgError

	mismatch := &pgwire.ParameterCountMismatchError{StatementName: "ps1", Expected: 2, Actual: 3}
	assert.False(t, errors.As(mismatch, &pgErr))
	assert.Contains(t, mismatch.Error(), "ps1")

	assert.False(t, errors.As(pgwire.ErrConnBusy, &pgErr))
	assert.False(t, errors.As(pgwire.ErrTLSRefused, &pgErr))
}
