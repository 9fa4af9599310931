package platform

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testThreadsClient(srv *httptest.Server) *ThreadsClient {
	return &ThreadsClient{http: srv.Client(), baseURL: srv.URL, userID: "me123"}
}

func TestThreadsPublishTwoStep(t *testing.T) {
	var steps []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		steps = append(steps, r.URL.Path)
		switch r.URL.Path {
		case "/me123/threads":
			if got := r.URL.Query().Get("text"); got != "kei camper build log" {
				t.Errorf("text = %q", got)
			}
			w.Write([]byte(`{"id": "container-1"}`))
		case "/me123/threads_publish":
			if got := r.URL.Query().Get("creation_id"); got != "container-1" {
				t.Errorf("creation_id = %q", got)
			}
			w.Write([]byte(`{"id": "post-1"}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	id, err := testThreadsClient(srv).Publish(context.Background(), "kei camper build log")
	if err != nil {
		t.Fatal(err)
	}
	if id != "post-1" {
		t.Errorf("id = %s", id)
	}
	if len(steps) != 2 {
		t.Errorf("publish must create a container then publish it, got %v", steps)
	}
}

func TestThreadsImpressionsFromViews(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/post-1/insights" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(`{"data": [
			{"name": "views", "values": [{"value": 777}]},
			{"name": "likes", "values": [{"value": 31}]}
		]}`))
	}))
	defer srv.Close()

	n, err := testThreadsClient(srv).Impressions(context.Background(), "post-1")
	if err != nil {
		t.Fatal(err)
	}
	if n != 777 {
		t.Errorf("impressions = %d, want the views metric", n)
	}
}
