package source

import (
    "context"
    "errors"
    "fmt"
    "io"
    "net/http"
    "net/url"
    "os"
    "path"
    "path/filepath"
    "strings"
    "sync"

    "github.com/aws/aws-sdk-go-v2/aws"
    awscfg "github.com/aws/aws-sdk-go-v2/config"
    "github.com/aws/aws-sdk-go-v2/credentials"
    "github.com/aws/aws-sdk-go-v2/feature/s3/manager"
    "github.com/aws/aws-sdk-go-v2/service/s3"
    "github.com/rs/zerolog/log"
)

var (
    // ErrTooLarge is returned when a document exceeds the configured size.
    ErrTooLarge = errors.New("document exceeds size limit")
    // ErrSchemeNotAllowed is returned for references the loader is not configured to read.
    ErrSchemeNotAllowed = errors.New("document reference scheme not allowed")
)

// Scheme is the kind of location a document reference points at.
type Scheme string

const (
    SchemeFile Scheme = "file"
    SchemeHTTP Scheme = "http"
    SchemeS3   Scheme = "s3"
)

// SchemeOf classifies ref. Bare paths count as file references.
func SchemeOf(ref string) Scheme {
    switch {
    case strings.HasPrefix(ref, "s3://"):
        return SchemeS3
    case strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://"):
        return SchemeHTTP
    default:
        return SchemeFile
    }
}

// Document is a loaded PDF and the name it should be shown under.
type Document struct {
    Ref  string
    Name string
    Data []byte
}

type S3Options struct {
    Region    string
    Endpoint  string // S3-compatible stores; enables path-style addressing
    AccessKey string // empty means the default credential chain
    SecretKey string
}

type Options struct {
    MaxBytes   int64
    HTTPClient *http.Client
    S3         S3Options
    // Schemes limits which references Load accepts. Empty allows all of them.
    Schemes []Scheme
}

// Loader reads documents referenced by a filesystem path, file://, http(s):// or s3://bucket/key.
type Loader struct {
    maxBytes int64
    http     *http.Client
    s3opts   S3Options
    schemes  []Scheme

    s3Once sync.Once
    s3Cli  *s3.Client
    s3Err  error
}

func NewLoader(opts Options) *Loader {
    if opts.HTTPClient == nil { opts.HTTPClient = http.DefaultClient }
    return &Loader{maxBytes: opts.MaxBytes, http: opts.HTTPClient, s3opts: opts.S3, schemes: opts.Schemes}
}

// Allows reports whether Load would accept ref, without reading anything.
func (l *Loader) Allows(ref string) error {
    if len(l.schemes) == 0 {
        return nil
    }
    sch := SchemeOf(ref)
    for _, s := range l.schemes {
        if s == sch {
            return nil
        }
    }
    return fmt.Errorf("%w: %s", ErrSchemeNotAllowed, sch)
}

func (l *Loader) Load(ctx context.Context, ref string) (*Document, error) {
    if err := l.Allows(ref); err != nil {
        return nil, err
    }
    // Strip optional #fragment
    if i := strings.Index(ref, "#"); i >= 0 { ref = ref[:i] }

    var (
        doc *Document
        err error
    )
    switch SchemeOf(ref) {
    case SchemeS3:
        doc, err = l.loadS3(ctx, ref)
    case SchemeHTTP:
        doc, err = l.loadHTTP(ctx, ref)
    default:
        doc, err = l.loadFile(ref, strings.TrimPrefix(ref, "file://"))
    }
    if err != nil {
        return nil, err
    }
    log.Debug().Str("ref", ref).Str("name", doc.Name).Int("bytes", len(doc.Data)).Msg("document loaded")
    return doc, nil
}

func (l *Loader) loadFile(ref, p string) (*Document, error) {
    f, err := os.Open(p)
    if err != nil { return nil, fmt.Errorf("open %s: %w", p, err) }
    defer f.Close()
    data, err := l.readAll(f)
    if err != nil { return nil, fmt.Errorf("read %s: %w", p, err) }
    return &Document{Ref: ref, Name: filepath.Base(p), Data: data}, nil
}

func (l *Loader) loadHTTP(ctx context.Context, ref string) (*Document, error) {
    req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
    if err != nil { return nil, err }
    resp, err := l.http.Do(req)
    if err != nil { return nil, err }
    defer resp.Body.Close()
    if resp.StatusCode != http.StatusOK { return nil, fmt.Errorf("http %d fetching %s", resp.StatusCode, ref) }
    if l.maxBytes > 0 && resp.ContentLength > l.maxBytes { return nil, ErrTooLarge }
    data, err := l.readAll(resp.Body)
    if err != nil { return nil, err }

    name := "document.pdf"
    if u, err := url.Parse(ref); err == nil {
        if b := path.Base(u.Path); b != "/" && b != "." && b != "" { name = b }
    }
    return &Document{Ref: ref, Name: name, Data: data}, nil
}

func (l *Loader) loadS3(ctx context.Context, ref string) (*Document, error) {
    bucket, key, err := ParseS3Ref(ref)
    if err != nil { return nil, err }

    cli, err := l.s3Client(ctx)
    if err != nil { return nil, err }

    in := &s3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)}
    if l.maxBytes > 0 {
        head, err := cli.HeadObject(ctx, &s3.HeadObjectInput{Bucket: in.Bucket, Key: in.Key})
        if err != nil { return nil, fmt.Errorf("s3 head %s: %w", ref, err) }
        if aws.ToInt64(head.ContentLength) > l.maxBytes { return nil, ErrTooLarge }
        // the object may grow between the two calls
        in.Range = aws.String(fmt.Sprintf("bytes=0-%d", l.maxBytes))
    }

    buf := manager.NewWriteAtBuffer(nil)
    n, err := manager.NewDownloader(cli).Download(ctx, buf, in)
    if err != nil { return nil, fmt.Errorf("s3 download %s: %w", ref, err) }
    if l.maxBytes > 0 && n > l.maxBytes { return nil, ErrTooLarge }

    log.Info().Str("bucket", bucket).Str("key", key).Int64("bytes", n).Msg("downloaded s3 pdf")
    return &Document{Ref: ref, Name: path.Base(key), Data: buf.Bytes()}, nil
}

func (l *Loader) s3Client(ctx context.Context) (*s3.Client, error) {
    l.s3Once.Do(func() { l.s3Cli, l.s3Err = NewS3Client(ctx, l.s3opts) })
    return l.s3Cli, l.s3Err
}

// NewS3Client builds a client from opts, falling back to the default AWS
// credential chain when no static keys are set.
func NewS3Client(ctx context.Context, o S3Options) (*s3.Client, error) {
    var opts []func(*awscfg.LoadOptions) error
    if o.Region != "" {
        opts = append(opts, awscfg.WithRegion(o.Region))
    }
    if o.AccessKey != "" {
        opts = append(opts, awscfg.WithCredentialsProvider(
            credentials.NewStaticCredentialsProvider(o.AccessKey, o.SecretKey, "")))
    }
    cfg, err := awscfg.LoadDefaultConfig(ctx, opts...)
    if err != nil {
        return nil, fmt.Errorf("failed to load AWS config: %w", err)
    }
    return s3.NewFromConfig(cfg, func(so *s3.Options) {
        if o.Endpoint != "" {
            so.BaseEndpoint = aws.String(o.Endpoint)
            so.UsePathStyle = true
        }
    }), nil
}

// ParseS3Ref splits s3://bucket/key.
func ParseS3Ref(ref string) (bucket, key string, err error) {
    p := strings.TrimPrefix(ref, "s3://")
    slash := strings.Index(p, "/")
    if slash <= 0 || slash == len(p)-1 { return "", "", fmt.Errorf("invalid s3 url: %s", ref) }
    return p[:slash], p[slash+1:], nil
}

func (l *Loader) readAll(r io.Reader) ([]byte, error) {
    if l.maxBytes <= 0 { return io.ReadAll(r) }
    data, err := io.ReadAll(io.LimitReader(r, l.maxBytes+1))
    if err != nil { return nil, err }
    if int64(len(data)) > l.maxBytes { return nil, ErrTooLarge }
    return data, nil
}
