package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/semmidev/dbstash/internal/config"
	"github.com/semmidev/dbstash/internal/domain"
)

type recordedRequest struct {
	method string
	path   string
	body   []byte
}

// fakeS3 answers just enough of the S3 REST API for the adapter.
type fakeS3 struct {
	mu       sync.Mutex
	requests []recordedRequest
	status   int
	listing  string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{method: r.Method, path: r.URL.Path, body: body})
	f.mu.Unlock()

	if f.status != 0 && f.status != http.StatusOK {
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(f.status)
		fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>AccessDenied</Code><Message>Access Denied</Message></Error>`)
		return
	}

	switch r.Method {
	case http.MethodPut:
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprint(w, f.listing)
	case http.MethodDelete:
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeS3) recorded() []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedRequest(nil), f.requests...)
}

func newTestS3(endpoint, prefix string) (*S3Storage, error) {
	return NewS3(context.Background(), &config.S3Config{
		Bucket:         "my-bucket",
		Region:         "us-east-1",
		Endpoint:       endpoint,
		ForcePathStyle: true,
		AccessKey:      "AKIDEXAMPLE",
		SecretKey:      "secret",
		Prefix:         prefix,
		MaxAttempts:    1,
		PartSizeMB:     5,
	})
}

const listing = `<?xml version="1.0" encoding="UTF-8"?>
<ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">
  <Name>my-bucket</Name><Prefix>db/</Prefix><KeyCount>2</KeyCount><MaxKeys>1000</MaxKeys><IsTruncated>false</IsTruncated>
  <Contents><Key>db/backup-20260901_050000.sql.gz</Key><LastModified>2026-09-01T05:00:00.000Z</LastModified><ETag>"a"</ETag><Size>4</Size><StorageClass>STANDARD</StorageClass></Contents>
  <Contents><Key>db/backup-20261017_050000.sql.gz</Key><LastModified>2026-10-17T05:00:00.000Z</LastModified><ETag>"b"</ETag><Size>4</Size><StorageClass>STANDARD</StorageClass></Contents>
</ListBucketResult>`

func TestS3Storage(t *testing.T) {
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(t.TempDir(), "none"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(t.TempDir(), "none"))

	Convey("Given an S3Storage pointed at an S3-compatible endpoint", t, func() {
		fake := &fakeS3{listing: listing}
		server := httptest.NewServer(fake)
		defer server.Close()

		ctx := context.Background()
		source := filepath.Join(t.TempDir(), "backup-07-1400.sql")
		So(os.WriteFile(source, []byte("-- dump\nCREATE TABLE t();\n"), 0600), ShouldBeNil)

		Convey("When uploading with path-style addressing", func() {
			s3, err := newTestS3(server.URL, "")
			So(err, ShouldBeNil)

			err = s3.Upload(ctx, source, "07/backup-07-1400.sql")

			Convey("It should PUT the bytes under bucket/key", func() {
				So(err, ShouldBeNil)
				reqs := fake.recorded()
				So(len(reqs), ShouldEqual, 1)
				So(reqs[0].method, ShouldEqual, http.MethodPut)
				So(reqs[0].path, ShouldEqual, "/my-bucket/07/backup-07-1400.sql")
				So(string(reqs[0].body), ShouldEqual, "-- dump\nCREATE TABLE t();\n")
			})
		})

		Convey("When a key prefix is configured", func() {
			s3, err := newTestS3(server.URL, "/db/")
			So(err, ShouldBeNil)

			So(s3.Upload(ctx, source, "backup.sql"), ShouldBeNil)

			Convey("It should be joined in front of the key", func() {
				So(fake.recorded()[0].path, ShouldEqual, "/my-bucket/db/backup.sql")
			})
		})

		Convey("When the service denies access", func() {
			fake.status = http.StatusForbidden
			s3, err := newTestS3(server.URL, "")
			So(err, ShouldBeNil)

			err = s3.Upload(ctx, source, "07/backup-07-1400.sql")

			Convey("It should return an UploadError carrying the API code", func() {
				var uploadErr *domain.UploadError
				So(errors.As(err, &uploadErr), ShouldBeTrue)
				So(uploadErr.Key, ShouldEqual, "07/backup-07-1400.sql")
				So(err.Error(), ShouldContainSubstring, "AccessDenied")
				So(len(fake.recorded()), ShouldEqual, 1)
			})
		})

		Convey("When the endpoint refuses connections", func() {
			dead := httptest.NewServer(http.NotFoundHandler())
			deadURL := dead.URL
			dead.Close()

			s3, err := newTestS3(deadURL, "")
			So(err, ShouldBeNil)

			err = s3.Upload(ctx, source, "07/backup-07-1400.sql")

			Convey("It should return an UploadError", func() {
				var uploadErr *domain.UploadError
				So(errors.As(err, &uploadErr), ShouldBeTrue)
			})
		})

		Convey("When the local file is missing", func() {
			s3, err := newTestS3(server.URL, "")
			So(err, ShouldBeNil)

			err = s3.Upload(ctx, filepath.Join(t.TempDir(), "missing.sql"), "missing.sql")

			Convey("It should fail without calling the service", func() {
				var uploadErr *domain.UploadError
				So(errors.As(err, &uploadErr), ShouldBeTrue)
				So(fake.recorded(), ShouldBeEmpty)
			})
		})

		Convey("When listing and pruning", func() {
			s3, err := newTestS3(server.URL, "db")
			So(err, ShouldBeNil)

			files, listErr := s3.List(ctx)
			old, oldErr := s3.GetOldFiles(ctx, time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC))
			deleteErr := s3.Delete(ctx, "backup-20260901_050000.sql.gz")

			Convey("It should strip the prefix and honour the cutoff", func() {
				So(listErr, ShouldBeNil)
				So(files, ShouldResemble, []string{"backup-20260901_050000.sql.gz", "backup-20261017_050000.sql.gz"})
				So(oldErr, ShouldBeNil)
				So(old, ShouldResemble, []string{"backup-20260901_050000.sql.gz"})
				So(deleteErr, ShouldBeNil)

				reqs := fake.recorded()
				last := reqs[len(reqs)-1]
				So(last.method, ShouldEqual, http.MethodDelete)
				So(last.path, ShouldEqual, "/my-bucket/db/backup-20260901_050000.sql.gz")
			})
		})

		Convey("When required settings are missing", func() {
			_, err := NewS3(ctx, &config.S3Config{Bucket: "my-bucket"})

			Convey("It should return a ConfigError", func() {
				var cfgErr *domain.ConfigError
				So(errors.As(err, &cfgErr), ShouldBeTrue)
				So(cfgErr.Field, ShouldEqual, "storage.s3.region")
			})
		})
	})
}
