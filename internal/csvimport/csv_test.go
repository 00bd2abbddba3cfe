package csvimport

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStream_SkipsHeaderAndTrims(t *testing.T) {
	content := "title, type, value, category\n" +
		" Salary , income , 5000 , Job \n" +
		"Rent,outcome,1200\n" +
		"\n"

	rows, err := DefaultParser().ReadAll(context.Background(), strings.NewReader(content))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, []string{"Salary", "income", "5000", "Job"}, rows[0].Cells)
	assert.Equal(t, 2, rows[0].Line)
	assert.Equal(t, "Rent", rows[1].Cell(0))
	assert.Equal(t, "", rows[1].Cell(3), "missing cells read as empty")
	assert.Equal(t, "", rows[1].Cell(-1))
}

func TestStream_HeaderOnly(t *testing.T) {
	rows, err := DefaultParser().ReadAll(context.Background(), strings.NewReader("title,type,value,category\n"))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestStream_AllRowsHandledBeforeReturn(t *testing.T) {
	var b strings.Builder
	b.WriteString("title,type,value,category\n")
	for i := 0; i < 500; i++ {
		b.WriteString("t,income,1,c\n")
	}

	p := Parser{SkipRows: 1, Buffer: 4}
	handled := 0
	err := p.Stream(context.Background(), strings.NewReader(b.String()), func(Row) error {
		// A slow consumer must not lose trailing rows.
		if handled%100 == 0 {
			time.Sleep(time.Millisecond)
		}
		handled++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 500, handled)
}

func TestStream_ParseError(t *testing.T) {
	content := "title,type,value,category\nok,income,1,c\n\"broken,income,1,c\n"
	_, err := DefaultParser().ReadAll(context.Background(), strings.NewReader(content))

	var pe *ParseError
	require.True(t, errors.As(err, &pe), "got %v", err)
	assert.Greater(t, pe.Line, 0)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, io.ErrUnexpectedEOF }

func TestStream_ReadError(t *testing.T) {
	_, err := DefaultParser().ReadAll(context.Background(), failingReader{})
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestStream_HandlerErrorStopsProducer(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 1000; i++ {
		b.WriteString("t,income,1,c\n")
	}
	stop := errors.New("stop")
	calls := 0

	err := Parser{Buffer: 1}.Stream(context.Background(), strings.NewReader(b.String()), func(Row) error {
		calls++
		if calls == 3 {
			return stop
		}
		return nil
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 3, calls)
}

func TestStream_CustomDelimiter(t *testing.T) {
	rows, err := Parser{Comma: ';'}.ReadAll(context.Background(), strings.NewReader("a;b;c\n"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"a", "b", "c"}, rows[0].Cells)
}

func TestStreamCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := DefaultParser().Stream(ctx, strings.NewReader("h\na\nb\n"), func(Row) error {
		calls++
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}
