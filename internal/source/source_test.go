package source

import (
    "context"
    "net/http"
    "net/http/httptest"
    "os"
    "path/filepath"
    "strconv"
    "testing"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

var pdfBytes = []byte("%PDF-1.4\nfake body\n%%EOF")

func TestLoad_FilePathAndFileURL(t *testing.T) {
    dir := t.TempDir()
    p := filepath.Join(dir, "notes.pdf")
    require.NoError(t, os.WriteFile(p, pdfBytes, 0o644))

    l := NewLoader(Options{})
    for _, ref := range []string{p, "file://" + p, p + "#page=2"} {
        doc, err := l.Load(context.Background(), ref)
        require.NoError(t, err, ref)
        assert.Equal(t, "notes.pdf", doc.Name)
        assert.Equal(t, pdfBytes, doc.Data)
    }
}

func TestLoad_FileTooLarge(t *testing.T) {
    p := filepath.Join(t.TempDir(), "big.pdf")
    require.NoError(t, os.WriteFile(p, pdfBytes, 0o644))
    _, err := NewLoader(Options{MaxBytes: 4}).Load(context.Background(), p)
    assert.ErrorIs(t, err, ErrTooLarge)
}

func TestLoad_HTTP(t *testing.T) {
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        if r.URL.Path != "/docs/chapter1.pdf" {
            http.NotFound(w, r)
            return
        }
        _, _ = w.Write(pdfBytes)
    }))
    defer srv.Close()

    l := NewLoader(Options{})
    doc, err := l.Load(context.Background(), srv.URL+"/docs/chapter1.pdf")
    require.NoError(t, err)
    assert.Equal(t, "chapter1.pdf", doc.Name)
    assert.Equal(t, pdfBytes, doc.Data)

    _, err = l.Load(context.Background(), srv.URL+"/missing.pdf")
    assert.ErrorContains(t, err, "http 404")
}

func TestLoad_S3CompatibleEndpoint(t *testing.T) {
    var gotPath string
    var methods []string
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        gotPath = r.URL.Path
        methods = append(methods, r.Method)
        w.Header().Set("Content-Type", "application/pdf")
        w.Header().Set("Content-Length", strconv.Itoa(len(pdfBytes)))
        _, _ = w.Write(pdfBytes)
    }))
    defer srv.Close()

    l := NewLoader(Options{MaxBytes: 1 << 20, S3: testS3(srv.URL)})
    doc, err := l.Load(context.Background(), "s3://quizzes/uploads/lecture.pdf")
    require.NoError(t, err)
    assert.Equal(t, "/quizzes/uploads/lecture.pdf", gotPath)
    assert.Equal(t, []string{http.MethodHead, http.MethodGet}, methods)
    assert.Equal(t, "lecture.pdf", doc.Name)
    assert.Equal(t, pdfBytes, doc.Data)
}

func TestParseS3Ref(t *testing.T) {
    b, k, err := ParseS3Ref("s3://bucket/a/b.pdf")
    require.NoError(t, err)
    assert.Equal(t, "bucket", b)
    assert.Equal(t, "a/b.pdf", k)

    for _, bad := range []string{"s3://", "s3://bucket", "s3://bucket/", "s3:///key"} {
        _, _, err := ParseS3Ref(bad)
        assert.Error(t, err, bad)
    }
}

func testS3(endpoint string) S3Options {
    return S3Options{Region: "us-east-1", Endpoint: endpoint, AccessKey: "test", SecretKey: "secret"}
}

func TestLoad_S3TooLargeIsRejectedBeforeDownload(t *testing.T) {
    var methods []string
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        methods = append(methods, r.Method)
        w.Header().Set("Content-Length", "5000000")
        w.WriteHeader(http.StatusOK)
    }))
    defer srv.Close()

    _, err := NewLoader(Options{MaxBytes: 1024, S3: testS3(srv.URL)}).Load(context.Background(), "s3://quizzes/big.pdf")
    assert.ErrorIs(t, err, ErrTooLarge)
    assert.Equal(t, []string{http.MethodHead}, methods)
}

func TestSchemeOf(t *testing.T) {
    assert.Equal(t, SchemeS3, SchemeOf("s3://b/k.pdf"))
    assert.Equal(t, SchemeHTTP, SchemeOf("https://example.com/a.pdf"))
    assert.Equal(t, SchemeHTTP, SchemeOf("http://169.254.169.254/latest"))
    assert.Equal(t, SchemeFile, SchemeOf("file:///etc/a.pdf"))
    assert.Equal(t, SchemeFile, SchemeOf("/etc/a.pdf"))
}

func TestLoad_SchemesRestrictReferences(t *testing.T) {
    p := filepath.Join(t.TempDir(), "secret.pdf")
    require.NoError(t, os.WriteFile(p, pdfBytes, 0o644))

    l := NewLoader(Options{Schemes: []Scheme{SchemeS3}})
    for _, ref := range []string{p, "file://" + p, "http://127.0.0.1/a.pdf", "https://example.com/a.pdf"} {
        assert.ErrorIs(t, l.Allows(ref), ErrSchemeNotAllowed, ref)
        _, err := l.Load(context.Background(), ref)
        assert.ErrorIs(t, err, ErrSchemeNotAllowed, ref)
    }
    assert.NoError(t, l.Allows("s3://bucket/notes.pdf"))
    assert.NoError(t, NewLoader(Options{}).Allows(p))
}
