package v1

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math/rand/v2"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/oralscreen/internal/clinical"
	"github.com/dmehra2102/prod-golang-projects/oralscreen/config"
	"github.com/dmehra2102/prod-golang-projects/oralscreen/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/oralscreen/internal/domain/record"
	"github.com/dmehra2102/prod-golang-projects/oralscreen/internal/inference"
	"github.com/dmehra2102/prod-golang-projects/oralscreen/internal/report"
	"github.com/dmehra2102/prod-golang-projects/oralscreen/internal/repository/memory"
	"github.com/dmehra2102/prod-golang-projects/oralscreen/internal/service"
	"github.com/dmehra2102/prod-golang-projects/oralscreen/internal/storage"
	"github.com/dmehra2102/prod-golang-projects/oralscreen/pkg/auth"
	"github.com/dmehra2102/prod-golang-projects/oralscreen/pkg/metrics"
)

const cookieName = "test_session"

var (
	doctorPrincipal = domain.Principal{Username: "house", Role: domain.RoleDoctor, DisplayName: "Dr. House"}
	alicePrincipal  = domain.Principal{Username: "alice", Role: domain.RolePatient}
	bobPrincipal    = domain.Principal{Username: "bob", Role: domain.RolePatient}
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	router   *gin.Engine
	repo     *memory.RecordRepository
	sessions *auth.SessionManager
	records  *service.RecordService
}

func newTestServer(t *testing.T, classifier inference.Classifier) *testServer {
	t.Helper()

	root := filepath.Join(t.TempDir(), "static")
	cfg := &config.Config{
		App:    config.AppConfig{Name: "oralscreen", Environment: "test"},
		Server: config.ServerConfig{MaxUploadBytes: 1 << 20},
		Session: config.SessionConfig{
			Secret:     "test-secret",
			TTL:        time.Hour,
			Issuer:     "oralscreen-test",
			CookieName: cookieName,
		},
		CORS: config.CORSConfig{
			AllowedOrigins: []string{"http://localhost:8080"},
			AllowedMethods: []string{"GET", "POST"},
			AllowedHeaders: []string{"Content-Type"},
			MaxAge:         time.Hour,
		},
		Storage: config.StorageConfig{
			StaticDir: root,
			UploadDir: filepath.Join(root, "uploads"),
			AudioDir:  filepath.Join(root, "audio"),
			ReportDir: root,
		},
	}

	files, err := storage.New(cfg.Storage)
	require.NoError(t, err)

	if classifier == nil {
		classifier = inference.ClassifierFunc(func(context.Context, inference.Tensor) (float64, error) {
			return 0.2, nil
		})
	}

	log := zap.NewNop()
	m := metrics.NewCollector("test", prometheus.NewRegistry())
	audit := service.NewAuditService(memory.NewAuditRepository(100), m, log)
	t.Cleanup(audit.Shutdown)

	sessions, err := auth.NewSessionManager(cfg.Session)
	require.NoError(t, err)

	policy, err := inference.NewConfidencePolicy(inference.ModeLegacy, rand.NewPCG(1, 2))
	require.NoError(t, err)

	repo := memory.NewRecordRepository()
	records := service.NewRecordService(repo, classifier, policy, files, audit, m, log)
	renderer := &report.FPDFRenderer{Author: "test", Uncompressed: true}
	gen := report.NewGenerator(files.ReportDir(), renderer, clinical.NewSynthesizer(rand.NewPCG(3, 4)), log)
	reports := service.NewReportService(records, repo, gen, audit, m, log)
	authSvc := service.NewAuthService(memory.NewUserRepository(), sessions, audit, log)

	router, err := NewRouter(RouterDeps{
		Config:   cfg,
		Records:  records,
		Reports:  reports,
		Auth:     authSvc,
		Sessions: sessions,
		Files:    files,
		Metrics:  m,
		Log:      log,
	})
	require.NoError(t, err)

	return &testServer{router: router, repo: repo, sessions: sessions, records: records}
}

func (s *testServer) do(t *testing.T, req *http.Request, as *domain.Principal) *httptest.ResponseRecorder {
	t.Helper()
	if as != nil {
		token, _, err := s.sessions.Issue(*as)
		require.NoError(t, err)
		req.AddCookie(&http.Cookie{Name: cookieName, Value: token})
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) postForm(t *testing.T, path string, form url.Values, as *domain.Principal) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return s.do(t, req, as)
}

// seed stores a classified record owned by owner and returns its key.
func (s *testServer) seed(t *testing.T, owner domain.Principal) string {
	t.Helper()
	rec, err := s.records.Predict(context.Background(), service.Caller{Principal: owner}, record.SubmitCommand{Image: pngBytes(t)})
	require.NoError(t, err)
	return rec.Key
}

func multipartRequest(t *testing.T, path string, fields map[string]string, fileField, fileName string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if fileField != "" {
		fw, err := mw.CreateFormFile(fileField, fileName)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: 180, G: 60, B: 70, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil), nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, nil)
	s.do(t, httptest.NewRequest(http.MethodGet, "/", nil), nil)

	w := s.do(t, httptest.NewRequest(http.MethodGet, "/metrics", nil), nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "test_http_requests_total")
}

func TestPublicPages(t *testing.T) {
	s := newTestServer(t, nil)

	for _, path := range []string{"/", "/index", "/start_screening", "/welcome", "/login"} {
		t.Run(path, func(t *testing.T) {
			w := s.do(t, httptest.NewRequest(http.MethodGet, path, nil), nil)
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
		})
	}
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, httptest.NewRequest(http.MethodGet, "/nope", nil), nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPredict(t *testing.T) {
	t.Run("no image", func(t *testing.T) {
		s := newTestServer(t, nil)
		w := s.do(t, multipartRequest(t, "/predict", map[string]string{"pain_level": "Mild"}, "", "", nil), nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		recs, _ := s.repo.ListAll(context.Background())
		assert.Empty(t, recs)
	})

	t.Run("not an image", func(t *testing.T) {
		s := newTestServer(t, nil)
		w := s.do(t, multipartRequest(t, "/predict", nil, "image", "x.png", []byte("not an image")), nil)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("classifier down hides cause", func(t *testing.T) {
		s := newTestServer(t, inference.ClassifierFunc(func(context.Context, inference.Tensor) (float64, error) {
			return 0, errors.New("connection refused by model host")
		}))
		w := s.do(t, multipartRequest(t, "/predict", nil, "image", "x.png", pngBytes(t)), nil)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "connection refused")
	})

	t.Run("renders result and stores owned record", func(t *testing.T) {
		s := newTestServer(t, nil)
		fields := map[string]string{"pain_level": "Severe", "habits": "Tobacco", "tobacco_years": "12"}
		w := s.do(t, multipartRequest(t, "/predict", fields, "image", "mouth.png", pngBytes(t)), &alicePrincipal)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), string(record.LabelRisk))

		recs, err := s.repo.ListAll(context.Background())
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, "alice", recs[0].Username)
		assert.Equal(t, "Severe", recs[0].Symptoms.PainLevel)
		assert.Equal(t, []string{"Tobacco"}, recs[0].Symptoms.Habits)
		assert.Contains(t, w.Body.String(), "/static/uploads/"+recs[0].Key+".jpg")
	})
}

func TestSubmitPatientData_RedirectsToDashboard(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, multipartRequest(t, "/submit_patient_data", nil, "image", "x.png", pngBytes(t)), &alicePrincipal)

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/patient_dashboard", w.Header().Get("Location"))
	recs, _ := s.repo.ListAll(context.Background())
	require.Len(t, recs, 1)
	assert.Equal(t, record.ConfidenceUnscored, recs[0].ConfidenceSource)
}

func TestRoleGating(t *testing.T) {
	s := newTestServer(t, nil)

	tests := []struct {
		name     string
		path     string
		as       *domain.Principal
		wantCode int
	}{
		{name: "anonymous doctor view", path: "/doctor_dashboard", wantCode: http.StatusSeeOther},
		{name: "patient on doctor view", path: "/doctor_dashboard", as: &alicePrincipal, wantCode: http.StatusForbidden},
		{name: "doctor view", path: "/doctor_dashboard", as: &doctorPrincipal, wantCode: http.StatusOK},
		{name: "anonymous patient view", path: "/patient_dashboard", wantCode: http.StatusSeeOther},
		{name: "doctor on patient view", path: "/patient_dashboard", as: &doctorPrincipal, wantCode: http.StatusForbidden},
		{name: "patient view", path: "/patient_dashboard", as: &alicePrincipal, wantCode: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, httptest.NewRequest(http.MethodGet, tt.path, nil), tt.as)
			assert.Equal(t, tt.wantCode, w.Code)
			if tt.wantCode == http.StatusSeeOther {
				assert.Equal(t, "/login", w.Header().Get("Location"))
			}
		})
	}
}

func TestInvalidSessionCookieIsAnonymous(t *testing.T) {
	s := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/doctor_dashboard", nil)
	req.AddCookie(&http.Cookie{Name: cookieName, Value: "garbage"})
	w := s.do(t, req, nil)

	assert.Equal(t, http.StatusSeeOther, w.Code)
}

func TestPatientDashboard_ShowsOnlyOwnRecords(t *testing.T) {
	s := newTestServer(t, nil)
	aliceKey := s.seed(t, alicePrincipal)
	bobKey := s.seed(t, bobPrincipal)

	w := s.do(t, httptest.NewRequest(http.MethodGet, "/patient_dashboard", nil), &alicePrincipal)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), aliceKey)
	assert.NotContains(t, w.Body.String(), bobKey)
}

func TestChat_ForeignRecordForbidden(t *testing.T) {
	s := newTestServer(t, nil)
	key := s.seed(t, alicePrincipal)

	w := s.do(t, httptest.NewRequest(http.MethodGet, "/chat?timestamp="+key, nil), &bobPrincipal)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, httptest.NewRequest(http.MethodGet, "/chat?timestamp="+key, nil), &alicePrincipal)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, httptest.NewRequest(http.MethodGet, "/chat_doctor?timestamp=missing", nil), &doctorPrincipal)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReplies(t *testing.T) {
	s := newTestServer(t, nil)
	key := s.seed(t, alicePrincipal)

	w := s.postForm(t, "/doctor_reply", url.Values{"timestamp": {key}, "message": {"Please visit"}}, &doctorPrincipal)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/doctor_dashboard", w.Header().Get("Location"))

	w = s.postForm(t, "/chat_reply", url.Values{"timestamp": {key}, "message": {"Will do"}}, &alicePrincipal)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/chat?timestamp="+key, w.Header().Get("Location"))

	w = s.postForm(t, "/doctor_reply", url.Values{"timestamp": {key}, "message": {"  "}}, &doctorPrincipal)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.postForm(t, "/doctor_reply", url.Values{"timestamp": {"19700101_000000"}, "message": {"hi"}}, &doctorPrincipal)
	assert.Equal(t, http.StatusNotFound, w.Code)

	rec, err := s.repo.FindByKey(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, record.StatusReplied, rec.Status)
	require.Len(t, rec.DoctorReplies, 1)
	require.Len(t, rec.PatientReplies, 1)
	assert.Equal(t, "Will do", rec.PatientReplies[0].Message)
}

func TestFollowUpAndDelete(t *testing.T) {
	s := newTestServer(t, nil)
	key := s.seed(t, alicePrincipal)
	ctx := context.Background()

	w := s.postForm(t, "/flag_follow_up", url.Values{"timestamp": {key}}, &doctorPrincipal)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	rec, err := s.repo.FindByKey(ctx, key)
	require.NoError(t, err)
	assert.True(t, rec.FollowUp)

	w = s.postForm(t, "/unflag_follow_up", url.Values{"timestamp": {key}}, &doctorPrincipal)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	rec, err = s.repo.FindByKey(ctx, key)
	require.NoError(t, err)
	assert.False(t, rec.FollowUp)

	w = s.postForm(t, "/delete_record", url.Values{}, &doctorPrincipal)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	for range 2 {
		w = s.postForm(t, "/delete_record", url.Values{"timestamp": {key}}, &doctorPrincipal)
		assert.Equal(t, http.StatusSeeOther, w.Code)
	}
	_, err = s.repo.FindByKey(ctx, key)
	assert.ErrorIs(t, err, record.ErrRecordNotFound)
}

func TestDownloadPDF(t *testing.T) {
	s := newTestServer(t, nil)
	key := s.seed(t, alicePrincipal)

	w := s.postForm(t, "/download_pdf", url.Values{}, &doctorPrincipal)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.postForm(t, "/download_pdf", url.Values{"timestamp": {"19700101_000000"}}, &doctorPrincipal)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.postForm(t, "/patient_download_pdf", url.Values{"timestamp": {key}}, &bobPrincipal)
	assert.Equal(t, http.StatusForbidden, w.Code)

	form := url.Values{"timestamp": {key}, "name": {"Alice"}, "age": {"40"}}
	w = s.postForm(t, "/download_pdf", form, &doctorPrincipal)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "report_"+key+".pdf")
	assert.True(t, strings.HasPrefix(w.Body.String(), "%PDF"))

	w = s.postForm(t, "/patient_download_pdf", form, &alicePrincipal)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDownloadPDF_HabitRows(t *testing.T) {
	s := newTestServer(t, nil)
	fields := map[string]string{"habits": "Tobacco", "tobacco_years": "5", "smoking_years": "7"}
	w := s.do(t, multipartRequest(t, "/predict", fields, "image", "mouth.png", pngBytes(t)), &alicePrincipal)
	require.Equal(t, http.StatusOK, w.Code)

	recs, err := s.repo.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 1)

	w = s.postForm(t, "/download_pdf", url.Values{"timestamp": {recs[0].Key}}, &doctorPrincipal)
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, "(Tobacco Years) Tj")
	assert.Contains(t, body, "(5) Tj")
	assert.NotContains(t, body, "Smoking Years")
	assert.Contains(t, body, "/Filter /DCTDecode")
	assert.Contains(t, body, "/ColorSpace /DeviceRGB")
}

func TestStatic_ReportsFollowRecordAccess(t *testing.T) {
	s := newTestServer(t, nil)
	key := s.seed(t, alicePrincipal)

	w := s.postForm(t, "/download_pdf", url.Values{"timestamp": {key}}, &doctorPrincipal)
	require.Equal(t, http.StatusOK, w.Code)

	reportURL := "/static/report_" + key + ".pdf"
	get := func(target string) *http.Request { return httptest.NewRequest(http.MethodGet, target, nil) }

	w = s.do(t, get(reportURL), nil)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))

	w = s.do(t, get(reportURL), &bobPrincipal)
	assert.Equal(t, http.StatusForbidden, w.Code)

	for _, p := range []*domain.Principal{&alicePrincipal, &doctorPrincipal} {
		w = s.do(t, get(reportURL), p)
		require.Equal(t, http.StatusOK, w.Code)
		assert.True(t, strings.HasPrefix(w.Body.String(), "%PDF"))
	}

	w = s.do(t, get("/static/report_19700101_000000.pdf"), &doctorPrincipal)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, get("/static/uploads/"+key+".jpg"), nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUploads(t *testing.T) {
	s := newTestServer(t, nil)
	key := s.seed(t, alicePrincipal)

	w := s.do(t, multipartRequest(t, "/upload_image", nil, "", "", nil), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, multipartRequest(t, "/upload_image", nil, "image", "x.png", pngBytes(t)), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Image uploaded successfully", w.Body.String())

	w = s.do(t, multipartRequest(t, "/upload_audio", map[string]string{"timestamp": key}, "", "", nil), &alicePrincipal)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, multipartRequest(t, "/upload_audio", nil, "audio", "note.webm", []byte("audio")), &alicePrincipal)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, multipartRequest(t, "/upload_audio", map[string]string{"timestamp": "19700101_000000"}, "audio", "note.webm", []byte("audio")), &alicePrincipal)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, multipartRequest(t, "/upload_audio", map[string]string{"timestamp": key}, "audio", "note.webm", []byte("audio")), &alicePrincipal)
	require.Equal(t, http.StatusOK, w.Code)

	rec, err := s.repo.FindByKey(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, key+"_note.webm", filepath.Base(rec.AudioPath))
}

func TestLoginFlow(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.postForm(t, "/login", url.Values{"username": {"carol"}}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Please fill in all fields.")

	w = s.postForm(t, "/login", url.Values{"username": {"carol"}, "password": {"pw"}, "role": {"doctor"}}, nil)
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/doctor_dashboard", w.Header().Get("Location"))

	var session *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == cookieName {
			session = c
		}
	}
	require.NotNil(t, session)
	assert.True(t, session.HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/doctor_dashboard", nil)
	req.AddCookie(session)
	w = s.do(t, req, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Dr. Carol")

	w = s.postForm(t, "/login", url.Values{"username": {"carol"}, "password": {"wrong"}}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid password.")

	w = s.postForm(t, "/logout", url.Values{}, nil)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/index", w.Header().Get("Location"))
}

func TestEditDoctorProfile_ReissuesSession(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.postForm(t, "/login", url.Values{"username": {"greg"}, "password": {"pw"}, "role": {"doctor"}}, nil)
	require.Equal(t, http.StatusSeeOther, w.Code)
	cookie := w.Result().Cookies()[0]

	req := httptest.NewRequest(http.MethodPost, "/edit_doctor_profile", strings.NewReader("doctor_name=Gregory+House"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(cookie)
	w = s.do(t, req, nil)
	require.Equal(t, http.StatusSeeOther, w.Code)

	renewed := w.Result().Cookies()
	require.NotEmpty(t, renewed)
	claims, err := s.sessions.Validate(renewed[0].Value)
	require.NoError(t, err)
	assert.Equal(t, "Gregory House", claims.DisplayName)
}
