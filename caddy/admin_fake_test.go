package caddy

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeAdmin is an in-memory stand-in for the caddy admin API config
// endpoints. It follows caddy's verb semantics: POST sets a key or appends
// to an array, PUT creates a key or inserts into an array, PATCH replaces an
// existing value and DELETE removes it.
type fakeAdmin struct {
	mu     sync.Mutex
	root   interface{}
	writes []string
	// failWrites makes every mutating request matching the path fail.
	failWrites map[string]int
}

func newFakeAdmin(t *testing.T, initial string) (*fakeAdmin, *httptest.Server) {
	t.Helper()

	f := &fakeAdmin{failWrites: map[string]int{}}
	if initial != "" {
		require.NoError(t, json.Unmarshal([]byte(initial), &f.root))
	}

	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeAdmin) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !strings.HasPrefix(r.URL.Path, "/config/") {
		http.Error(w, `{"error":"unknown path"}`, http.StatusNotFound)
		return
	}
	var parts []string
	for _, p := range strings.Split(strings.TrimPrefix(r.URL.Path, "/config/"), "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}

	if r.Method == http.MethodGet {
		val, err := lookup(f.root, parts)
		if err != nil {
			http.Error(w, fmt.Sprintf(`{"error":%q}`, err.Error()), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(val)
		return
	}

	f.writes = append(f.writes, r.Method+" "+r.URL.Path)
	if code, ok := f.failWrites[r.URL.Path]; ok {
		http.Error(w, `{"error":"injected failure"}`, code)
		return
	}

	var val interface{}
	if r.Method != http.MethodDelete {
		body, err := io.ReadAll(r.Body)
		if err != nil || json.Unmarshal(body, &val) != nil {
			http.Error(w, `{"error":"bad body"}`, http.StatusBadRequest)
			return
		}
	}

	if len(parts) == 0 {
		if r.Method != http.MethodPost {
			http.Error(w, `{"error":"unsupported"}`, http.StatusMethodNotAllowed)
			return
		}
		f.root = val
		return
	}

	root, err := mutate(f.root, parts, r.Method, val)
	if err != nil {
		http.Error(w, fmt.Sprintf(`{"error":%q}`, err.Error()), http.StatusBadRequest)
		return
	}
	f.root = root
}

func (f *fakeAdmin) state(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	b, err := json.Marshal(f.root)
	require.NoError(t, err)
	return string(b)
}

func (f *fakeAdmin) writeLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.writes) == 0 {
		return nil
	}
	return append([]string{}, f.writes...)
}

func (f *fakeAdmin) resetWrites() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = nil
}

func (f *fakeAdmin) get(t *testing.T, path string, out interface{}) {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	var parts []string
	for _, p := range strings.Split(path, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	val, err := lookup(f.root, parts)
	require.NoError(t, err)
	b, err := json.Marshal(val)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(b, out))
}

func child(node interface{}, key string) (interface{}, error) {
	switch n := node.(type) {
	case map[string]interface{}:
		v, ok := n[key]
		if !ok {
			return nil, fmt.Errorf("invalid traversal path at: %s", key)
		}
		return v, nil
	case []interface{}:
		idx, err := strconv.Atoi(key)
		if err != nil || idx < 0 || idx >= len(n) {
			return nil, fmt.Errorf("invalid array index: %s", key)
		}
		return n[idx], nil
	default:
		return nil, fmt.Errorf("invalid traversal path at: %s", key)
	}
}

func lookup(node interface{}, parts []string) (interface{}, error) {
	for _, p := range parts {
		var err error
		node, err = child(node, p)
		if err != nil {
			return nil, err
		}
	}
	return node, nil
}

func mutate(node interface{}, parts []string, method string, val interface{}) (interface{}, error) {
	if len(parts) > 1 {
		c, err := child(node, parts[0])
		if err != nil {
			return nil, err
		}
		updated, err := mutate(c, parts[1:], method, val)
		if err != nil {
			return nil, err
		}
		return setChild(node, parts[0], updated)
	}

	key := parts[0]
	switch n := node.(type) {
	case map[string]interface{}:
		existing, exists := n[key]
		switch method {
		case http.MethodPost:
			if arr, ok := existing.([]interface{}); ok {
				n[key] = append(arr, val)
			} else {
				n[key] = val
			}
		case http.MethodPut:
			if exists {
				return nil, fmt.Errorf("key already exists: %s", key)
			}
			n[key] = val
		case http.MethodPatch:
			if !exists {
				return nil, fmt.Errorf("key does not exist: %s", key)
			}
			n[key] = val
		case http.MethodDelete:
			if !exists {
				return nil, fmt.Errorf("key does not exist: %s", key)
			}
			delete(n, key)
		}
		return n, nil
	case []interface{}:
		idx, err := strconv.Atoi(key)
		if err != nil || idx < 0 {
			return nil, fmt.Errorf("invalid array index: %s", key)
		}
		switch method {
		case http.MethodPut:
			if idx > len(n) {
				return nil, fmt.Errorf("array index out of bounds: %s", key)
			}
			n = append(n, nil)
			copy(n[idx+1:], n[idx:])
			n[idx] = val
		case http.MethodPatch:
			if idx >= len(n) {
				return nil, fmt.Errorf("array index out of bounds: %s", key)
			}
			n[idx] = val
		case http.MethodDelete:
			if idx >= len(n) {
				return nil, fmt.Errorf("array index out of bounds: %s", key)
			}
			n = append(n[:idx], n[idx+1:]...)
		default:
			return nil, fmt.Errorf("unsupported %s on array element", method)
		}
		return n, nil
	default:
		return nil, fmt.Errorf("invalid traversal path at: %s", key)
	}
}

func setChild(node interface{}, key string, val interface{}) (interface{}, error) {
	switch n := node.(type) {
	case map[string]interface{}:
		n[key] = val
		return n, nil
	case []interface{}:
		idx, _ := strconv.Atoi(key)
		n[idx] = val
		return n, nil
	default:
		return nil, fmt.Errorf("invalid traversal path at: %s", key)
	}
}
