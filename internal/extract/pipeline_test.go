package extract

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockExtractor struct {
	mock.Mock
	name string
}

func (m *mockExtractor) Name() string {
	return m.name
}

func (m *mockExtractor) Extract(ctx context.Context, doc Document) (Result, error) {
	args := m.Called(ctx, doc)
	return args.Get(0).(Result), args.Error(1)
}

func newMock(name string) *mockExtractor {
	return &mockExtractor{name: name}
}

func text(n int) string {
	return strings.Repeat("x", n)
}

func smallDoc() Document {
	return Document{URL: "https://upsc.gov.in/qp.pdf", Data: []byte("%PDF-1.4 tiny"), DeclaredSize: 2048}
}

func TestPipelineNativeShortCircuit(t *testing.T) {
	native := newMock("native")
	ocrA := newMock("mistral")
	ocrB := newMock("gemini")
	native.On("Extract", mock.Anything, mock.Anything).Return(NewResult(text(101), MethodNative), nil).Once()

	p := NewPipeline(native, []Extractor{ocrA, ocrB}, Options{}, nil)
	res, err := p.Extract(context.Background(), smallDoc())

	require.NoError(t, err)
	require.Equal(t, MethodNative, res.Method)
	require.Equal(t, 101, res.CharCount)
	native.AssertExpectations(t)
	ocrA.AssertNumberOfCalls(t, "Extract", 0)
	ocrB.AssertNumberOfCalls(t, "Extract", 0)
}

func TestPipelineFallbackOrder(t *testing.T) {
	tests := []struct {
		name       string
		aResult    Result
		aErr       error
		wantMethod Method
		wantBCalls int
	}{
		{
			name:       "first service succeeds",
			aResult:    NewResult(text(500), MethodServiceA),
			wantMethod: MethodServiceA,
			wantBCalls: 0,
		},
		{
			name:       "first service errors",
			aErr:       errors.New("upload rejected"),
			wantMethod: MethodServiceB,
			wantBCalls: 1,
		},
		{
			name:       "first service insufficient",
			aResult:    NewResult(text(100), MethodServiceA),
			wantMethod: MethodServiceB,
			wantBCalls: 1,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var order []string
			native := newMock("native")
			ocrA := newMock("mistral")
			ocrB := newMock("gemini")
			native.On("Extract", mock.Anything, mock.Anything).Return(NewResult(text(40), MethodNative), nil)
			ocrA.On("Extract", mock.Anything, mock.Anything).
				Run(func(mock.Arguments) { order = append(order, "mistral") }).
				Return(tc.aResult, tc.aErr)
			ocrB.On("Extract", mock.Anything, mock.Anything).
				Run(func(mock.Arguments) { order = append(order, "gemini") }).
				Return(NewResult(text(300), MethodServiceB), nil)

			p := NewPipeline(native, []Extractor{ocrA, ocrB}, Options{}, nil)
			res, err := p.Extract(context.Background(), smallDoc())

			require.NoError(t, err)
			require.Equal(t, tc.wantMethod, res.Method)
			require.Equal(t, "mistral", order[0])
			ocrA.AssertNumberOfCalls(t, "Extract", 1)
			ocrB.AssertNumberOfCalls(t, "Extract", tc.wantBCalls)
		})
	}
}

func TestPipelineLargeDocumentSkipsOCR(t *testing.T) {
	native := newMock("native")
	ocrA := newMock("mistral")
	native.On("Extract", mock.Anything, mock.Anything).Return(NewResult("Roll No", MethodNative), nil)

	doc := smallDoc()
	doc.DeclaredSize = DefaultMaxOCRBytes + 1

	p := NewPipeline(native, []Extractor{ocrA}, Options{}, nil)
	res, err := p.Extract(context.Background(), doc)

	require.NoError(t, err)
	require.Equal(t, MethodNative, res.Method)
	require.Equal(t, "Roll No", res.Text)
	ocrA.AssertNumberOfCalls(t, "Extract", 0)
}

func TestPipelineLargeDocumentWithoutNativeText(t *testing.T) {
	native := newMock("native")
	ocrA := newMock("mistral")
	native.On("Extract", mock.Anything, mock.Anything).Return(Result{}, ErrNotPDF)

	doc := smallDoc()
	doc.DeclaredSize = 60 << 20

	p := NewPipeline(native, []Extractor{ocrA}, Options{}, nil)
	res, err := p.Extract(context.Background(), doc)

	require.NoError(t, err)
	require.True(t, res.Empty())
	ocrA.AssertNumberOfCalls(t, "Extract", 0)
}

func TestPipelineExhaustionReturnsEmpty(t *testing.T) {
	native := newMock("native")
	ocrA := newMock("mistral")
	ocrB := newMock("gemini")
	native.On("Extract", mock.Anything, mock.Anything).Return(NewResult(text(80), MethodNative), nil)
	ocrA.On("Extract", mock.Anything, mock.Anything).Return(Result{}, context.DeadlineExceeded)
	ocrB.On("Extract", mock.Anything, mock.Anything).Return(NewResult(text(10), MethodServiceB), nil)

	p := NewPipeline(native, []Extractor{ocrA, ocrB}, Options{}, nil)
	res, err := p.Extract(context.Background(), smallDoc())

	require.NoError(t, err)
	require.Equal(t, Result{}, res)
	ocrA.AssertNumberOfCalls(t, "Extract", 1)
	ocrB.AssertNumberOfCalls(t, "Extract", 1)
}

func TestPipelineBoundsEachTier(t *testing.T) {
	native := newMock("native")
	ocrA := newMock("mistral")
	native.On("Extract", mock.Anything, mock.Anything).Return(Result{}, nil)
	ocrA.On("Extract", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			ctx := args.Get(0).(context.Context)
			deadline, ok := ctx.Deadline()
			require.True(t, ok)
			require.WithinDuration(t, time.Now().Add(50*time.Millisecond), deadline, time.Second)
		}).
		Return(Result{}, errors.New("timeout"))

	p := NewPipeline(native, []Extractor{ocrA}, Options{OCRTimeout: 50 * time.Millisecond}, nil)
	res, err := p.Extract(context.Background(), smallDoc())

	require.NoError(t, err)
	require.True(t, res.Empty())
}

func TestPipelineCancelledContext(t *testing.T) {
	native := newMock("native")
	ocrA := newMock("mistral")
	native.On("Extract", mock.Anything, mock.Anything).Return(Result{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewPipeline(native, []Extractor{ocrA}, Options{}, nil)
	_, err := p.Extract(ctx, smallDoc())

	require.ErrorIs(t, err, context.Canceled)
	ocrA.AssertNumberOfCalls(t, "Extract", 0)
}

func TestOCRBackendErrorUnwraps(t *testing.T) {
	err := &OCRBackendError{Service: "gemini", Err: ErrInsufficientText}
	require.ErrorIs(t, err, ErrInsufficientText)
	require.Contains(t, err.Error(), "gemini")
}

func TestPipelineTextLayerPDFSkipsOCR(t *testing.T) {
	ocr := newMock("mistral")

	p := NewPipeline(&NativePDF{}, []Extractor{ocr}, Options{}, nil)
	res, err := p.Extract(context.Background(), loadTwoPages(t))

	require.NoError(t, err)
	require.Equal(t, MethodNative, res.Method)
	require.Contains(t, res.Text, "Election Commission")
	ocr.AssertNumberOfCalls(t, "Extract", 0)
}
