package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/LaazAlae/alaeautomates-backend/internal/config"
	"github.com/LaazAlae/alaeautomates-backend/internal/metrics"
	queueMemory "github.com/LaazAlae/alaeautomates-backend/internal/queue/memory"
	"github.com/LaazAlae/alaeautomates-backend/internal/review"
	"github.com/LaazAlae/alaeautomates-backend/internal/statements"
	storeMemory "github.com/LaazAlae/alaeautomates-backend/internal/store/memory"
)

type fakeIDGen struct {
	ids []string
}

func (f *fakeIDGen) NewID() (string, error) {
	id := f.ids[0]
	if len(f.ids) > 1 {
		f.ids = f.ids[1:]
	}
	return id, nil
}

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time { return f.now }

type fakeHasher struct{}

func (fakeHasher) Hash(_ []byte) (string, error) { return "deadbeef", nil }

type fakeBlobStore struct {
	objects map[string][]byte
}

func (f *fakeBlobStore) PutObject(_ context.Context, path, _ string, data []byte) (string, error) {
	if f.objects == nil {
		f.objects = make(map[string][]byte)
	}
	uri := "memory://" + path
	f.objects[uri] = data
	return uri, nil
}

func (f *fakeBlobStore) GetObject(_ context.Context, path string) (io.ReadCloser, error) {
	data, ok := f.objects[path]
	if !ok {
		return nil, statements.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

type serverFixture struct {
	server  *Server
	store   *storeMemory.SessionStore
	queue   *queueMemory.Queue
	reviews *review.Registry
	blobs   *fakeBlobStore
}

func newTestServer(t *testing.T, mutate ...func(*config.Config)) *serverFixture {
	t.Helper()
	metrics.Init()
	cfg := config.Config{
		Server:     config.ServerConfig{Port: 8080, TimeoutSeconds: 5},
		Processing: config.ProcessingConfig{Workers: 1, QueueDepth: 8, MaxStatements: 100},
	}
	for _, fn := range mutate {
		fn(&cfg)
	}
	f := &serverFixture{
		store:   storeMemory.NewSessionStore(nil),
		queue:   queueMemory.NewQueue(cfg.Processing.QueueDepth),
		reviews: review.NewRegistry(),
		blobs:   &fakeBlobStore{},
	}
	f.server = NewServer(
		f.store,
		f.queue,
		f.reviews,
		f.blobs,
		&fakeIDGen{ids: []string{"session-1"}},
		fakeHasher{},
		&fakeClock{now: time.Unix(1700000000, 0)},
		cfg,
		zap.NewNop(),
	)
	return f
}

func (f *serverFixture) do(method, path string, body string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestServer_SubmitSession_Succeeds(t *testing.T) {
	t.Parallel()

	f := newTestServer(t)
	body := `{"dnm_companies":["Acme Corp"],"statements":[{"company_name":"Acme Corp","body":"Dallas TX","pages":1}]}`
	rec := f.do(http.MethodPost, "/api/v1/monthly-statements/process", body)

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Contains(t, rec.Body.String(), "session-1")
	require.Contains(t, rec.Body.String(), "pending")

	session, err := f.store.GetSession(context.Background(), "session-1")
	require.NoError(t, err)
	require.Equal(t, statements.StatusPending, session.Status)
	require.Equal(t, "deadbeef", session.PayloadHash)
	require.Equal(t, 1, session.Progress.Total)

	item, err := f.queue.Dequeue(context.Background())
	require.NoError(t, err)
	require.Equal(t, "session-1", item.SessionID)
	require.Equal(t, statements.PhaseClassify, item.Phase)
	require.Len(t, item.Params.Records, 1)
}

func TestServer_SubmitSession_InvalidJSON(t *testing.T) {
	t.Parallel()

	f := newTestServer(t)
	rec := f.do(http.MethodPost, "/api/v1/monthly-statements/process", "{invalid")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_SubmitSession_MissingStatements(t *testing.T) {
	t.Parallel()

	f := newTestServer(t)
	rec := f.do(http.MethodPost, "/api/v1/monthly-statements/process", `{"statements":[]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "statements required")
}

func TestServer_SubmitSession_TooManyStatements(t *testing.T) {
	t.Parallel()

	f := newTestServer(t, func(cfg *config.Config) {
		cfg.Processing.MaxStatements = 1
	})
	body := `{"statements":[{"company_name":"A","pages":1},{"company_name":"B","pages":1}]}`
	rec := f.do(http.MethodPost, "/api/v1/monthly-statements/process", body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "too many statements")
}

func TestServer_GetStatus(t *testing.T) {
	t.Parallel()

	f := newTestServer(t)
	require.NoError(t, f.store.CreateSession(context.Background(), statements.Session{
		ID:        "session-1",
		Status:    statements.StatusProcessing,
		Submitted: time.Unix(1700000000, 0),
		Progress:  statements.Progress{Processed: 3, Total: 7},
	}))

	rec := f.do(http.MethodGet, "/api/v1/monthly-statements/session-1/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "session-1", resp.SessionID)
	require.Equal(t, "processing", resp.Status)
	require.NotNil(t, resp.Progress)
	require.Equal(t, 3, resp.Progress.Processed)
	require.Equal(t, 7, resp.Progress.Total)
}

func TestServer_GetStatus_NotFound(t *testing.T) {
	t.Parallel()

	f := newTestServer(t)
	rec := f.do(http.MethodGet, "/api/v1/monthly-statements/missing/status", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_AnswerQuestions_EnqueuesResultsWhenDone(t *testing.T) {
	t.Parallel()

	f := newTestServer(t)
	all := []statements.ClassifiedStatement{
		{
			Record: statements.StatementRecord{CompanyName: "Globex Labs", Pages: 1},
			Classification: statements.Classification{
				Location:    "National",
				Destination: statements.DestinationNatioSingle,
				SimilarTo:   "Globex Incorporated",
				AskQuestion: true,
			},
		},
	}
	require.Equal(t, 1, f.reviews.Register("session-1", all))
	require.NoError(t, f.store.CreateSession(context.Background(), statements.Session{
		ID:                "session-1",
		Status:            statements.StatusCompleted,
		Submitted:         time.Unix(1700000000, 0),
		RequiresQuestions: true,
		QuestionsCount:    1,
	}))

	rec := f.do(http.MethodGet, "/api/v1/monthly-statements/session-1/questions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Globex Labs")

	rec = f.do(http.MethodPost, "/api/v1/monthly-statements/session-1/questions/answer", `{"answer":"y"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var state statements.QuestionState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	require.True(t, state.Completed)

	item, err := f.queue.Dequeue(context.Background())
	require.NoError(t, err)
	require.Equal(t, statements.PhaseResults, item.Phase)
	require.Equal(t, "session-1", item.SessionID)
}

func TestServer_AnswerQuestions_InvalidAnswer(t *testing.T) {
	t.Parallel()

	f := newTestServer(t)
	f.reviews.Register("session-1", []statements.ClassifiedStatement{
		{Classification: statements.Classification{AskQuestion: true}},
	})

	rec := f.do(http.MethodPost, "/api/v1/monthly-statements/session-1/questions/answer", `{"answer":"x"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_AnswerQuestions_UnknownSession(t *testing.T) {
	t.Parallel()

	f := newTestServer(t)
	rec := f.do(http.MethodPost, "/api/v1/monthly-statements/missing/questions/answer", `{"answer":"y"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_GetResults_NotReady(t *testing.T) {
	t.Parallel()

	f := newTestServer(t)
	require.NoError(t, f.store.CreateSession(context.Background(), statements.Session{
		ID:        "session-1",
		Status:    statements.StatusCreatingResults,
		Submitted: time.Unix(1700000000, 0),
	}))

	rec := f.do(http.MethodGet, "/api/v1/monthly-statements/session-1/results", "")
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), "results not ready")
}

func TestServer_GetResults_ReturnsStatistics(t *testing.T) {
	t.Parallel()

	f := newTestServer(t)
	ctx := context.Background()
	require.NoError(t, f.store.CreateSession(ctx, statements.Session{
		ID:        "session-1",
		Status:    statements.StatusCompleted,
		Submitted: time.Unix(1700000000, 0),
	}))
	require.NoError(t, f.store.RecordStatement(ctx, "session-1", statements.ClassifiedStatement{
		Record:         statements.StatementRecord{CompanyName: "Acme Corp", Pages: 1},
		Classification: statements.Classification{Destination: statements.DestinationNatioSingle},
	}))
	require.NoError(t, f.store.UpdateSessionArchive(ctx, "session-1", "memory://archives/session-1/abc.zip"))
	require.NoError(t, f.store.UpdateSessionStatus(ctx, "session-1", statements.StatusCompleted, ""))

	rec := f.do(http.MethodGet, "/api/v1/monthly-statements/session-1/results", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var results statements.Results
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	require.Equal(t, "session-1", results.SessionID)
	require.Equal(t, 1, results.Statistics.TotalStatements)
	require.Equal(t, 1, results.Statistics.Destinations["Natio Single"])
	require.Equal(t, "memory://archives/session-1/abc.zip", results.ArchiveURI)
}

func TestServer_Download_StreamsArchive(t *testing.T) {
	t.Parallel()

	f := newTestServer(t)
	ctx := context.Background()
	uri, err := f.blobs.PutObject(ctx, "archives/session-1/abc.zip", "application/zip", []byte("zipbytes"))
	require.NoError(t, err)
	require.NoError(t, f.store.CreateSession(ctx, statements.Session{
		ID:        "session-1",
		Status:    statements.StatusCompleted,
		Submitted: time.Unix(1700000000, 0),
	}))
	require.NoError(t, f.store.UpdateSessionArchive(ctx, "session-1", uri))

	rec := f.do(http.MethodGet, "/api/v1/monthly-statements/session-1/download", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/zip", rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Header().Get("Content-Disposition"), "statements_session-1.zip")
	require.Equal(t, "zipbytes", rec.Body.String())
}

func TestServer_ProcessBatch_NormalizesRows(t *testing.T) {
	t.Parallel()

	f := newTestServer(t)
	body := `{"rows":[
		{"invoice":"r123456","customer":"Smith, John","card_type":"V","card_number":"XXXX1234","settlement":"$150.00"},
		{"invoice":"R2","customer":"Acme Corp","card_type":"V","card_number":"XXXX2222","settlement":"(45.00)"}
	]}`
	rec := f.do(http.MethodPost, "/api/v1/cc-batch/process-batch", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp parseExcelResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.Equal(t, 1, resp.RecordsCount)
	require.Len(t, resp.ProcessedData, 1)
	require.Equal(t, "R123456", resp.ProcessedData[0].InvoiceNumber)
	require.Equal(t, "VISA-1234", resp.ProcessedData[0].CardPaymentMethod)
	require.Equal(t, "John Smith", resp.ProcessedData[0].Customer)
	require.Equal(t, "150.00", resp.ProcessedData[0].SettlementAmount)
	require.Contains(t, resp.JavascriptCode, "var PAYMENT_DATA")
	require.Equal(t, "Successfully processed 1 credit card records", resp.Message)
}

func TestServer_ProcessBatch_Rejections(t *testing.T) {
	t.Parallel()

	f := newTestServer(t)

	rec := f.do(http.MethodPost, "/api/v1/cc-batch/process-batch", `{"rows":[]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "rows required")

	rec = f.do(http.MethodPost, "/api/v1/cc-batch/process-batch",
		`{"rows":[{"invoice":"R1","settlement":"(1.00)"}]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "no valid data records found")
}

func TestServer_RateLimit_Returns429(t *testing.T) {
	t.Parallel()

	f := newTestServer(t, func(cfg *config.Config) {
		cfg.RateLimit = config.RateLimitConfig{Enabled: true, RPS: 0.001, Burst: 1}
	})

	first := f.do(http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, first.Code)

	second := f.do(http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusTooManyRequests, second.Code)
	require.Equal(t, "3", second.Header().Get("Retry-After"))
	require.Contains(t, second.Body.String(), "rate limit exceeded")
}

func TestServer_Healthz(t *testing.T) {
	t.Parallel()

	f := newTestServer(t)
	rec := f.do(http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "ok")
}
