package testsupport

import (
	"context"
	"testing"

	"lockersync/internal/locker"
)

func TestFakeTransportCountsEveryUploadCall(t *testing.T) {
	fake := &FakeTransport{}
	session := locker.Session{URL: "session://same"}
	for _, body := range []string{"first", "second"} {
		if _, err := fake.UploadFile(context.Background(), session, []byte(body)); err != nil {
			t.Fatalf("UploadFile: %v", err)
		}
	}
	if got := fake.UploadCount(); got != 2 {
		t.Fatalf("expected a reused session to count twice, got %d", got)
	}
	if got := string(fake.Uploaded(session.URL)); got != "second" {
		t.Fatalf("expected last body for the url, got %q", got)
	}
}
