package apperror

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindString(t *testing.T) {
	assert.Equal(t, "structural_parse", StructuralParse.String())
	assert.Equal(t, "batch_write", BatchWrite.String())
	assert.Equal(t, "cancelled", Cancelled.String())
	assert.Equal(t, "unknown", Kind(99).String())
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("disk I/O error")
	err := Wrap(TransactionFatal, "persist", cause)

	require.Error(t, err)
	assert.True(t, IsFatal(err))
	assert.ErrorIs(t, err, cause)

	wrapped := fmt.Errorf("import: %w", err)
	assert.True(t, IsFatal(wrapped))
	kind, ok := KindOf(wrapped)
	assert.True(t, ok)
	assert.Equal(t, TransactionFatal, kind)
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(BatchWrite, "insert", nil))
	assert.NoError(t, WrapRecord(BatchWrite, "insert", "products", "X", nil))
}

func TestWrapRecordMessage(t *testing.T) {
	err := WrapRecord(RecordTransform, "parse", "product", "TEST001", errors.New("bad vat"))
	assert.Equal(t, `parse: record_transform product "TEST001": bad vat`, err.Error())
	assert.False(t, IsFatal(err))
}

func TestIsCancelled(t *testing.T) {
	assert.False(t, IsCancelled(nil))
	assert.True(t, IsCancelled(context.Canceled))
	assert.True(t, IsCancelled(New(Cancelled, "persist", "stop")))
	assert.False(t, IsCancelled(errors.New("boom")))
}

func TestCheckCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	assert.NoError(t, CheckCancelled(ctx, "phase"))

	cancel()
	err := CheckCancelled(ctx, "phase")
	require.Error(t, err)
	assert.True(t, IsKind(err, Cancelled))
	assert.ErrorIs(t, err, context.Canceled)
}
