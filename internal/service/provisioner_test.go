//go:build unit

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"factory-hook/internal/client"
	"factory-hook/internal/factory"
	"factory-hook/internal/repository"
)

// fakeProvisioningService is an in-memory provisioning API
type fakeProvisioningService struct {
	t *testing.T

	mu        sync.Mutex
	factories map[string]factory.Factory
	nextID    int
	created   []factory.Factory
	deleted   []string
	// dropLinks makes created factories come back without a public link
	dropLinks bool
	// rejectLogin makes the login call return an empty body
	rejectLogin bool

	server *httptest.Server
}

func newFakeProvisioningService(t *testing.T) *fakeProvisioningService {
	t.Helper()
	fake := &fakeProvisioningService{t: t, factories: map[string]factory.Factory{}}
	fake.server = httptest.NewServer(http.HandlerFunc(fake.serve))
	t.Cleanup(fake.server.Close)
	return fake
}

func (f *fakeProvisioningService) settings() repository.ConnectionSettings {
	return repository.ConnectionSettings{InstanceURL: f.server.URL, Username: "admin", Password: "secret"}
}

func (f *fakeProvisioningService) api() client.FactoryAPI {
	return client.NewFactoryClientWithHTTP(f.server.Client())
}

func (f *fakeProvisioningService) seed(raw string) {
	var tmpl factory.Factory
	require.NoError(f.t, json.Unmarshal([]byte(raw), &tmpl))
	f.mu.Lock()
	defer f.mu.Unlock()
	f.factories[tmpl.ID()] = tmpl
}

func (f *fakeProvisioningService) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/api/auth/login":
		if f.rejectLogin {
			return
		}
		_, _ = w.Write([]byte(`{"value": "tok-1"}`))

	case r.Method == http.MethodGet && r.URL.Path == "/api/user":
		_, _ = w.Write([]byte(`{"id": "user-1", "email": "admin@example.com"}`))

	case r.Method == http.MethodGet && r.URL.Path == "/api/factory/find":
		assert.Equal(f.t, "tok-1", r.URL.Query().Get("token"))
		name := r.URL.Query().Get("name")
		found := []factory.Factory{}
		for _, id := range f.sortedIDs() {
			if f.factories[id].Name() == name {
				found = append(found, f.factories[id])
			}
		}
		_ = json.NewEncoder(w).Encode(found)

	case r.Method == http.MethodPost && r.URL.Path == "/api/factory":
		assert.Equal(f.t, "tok-1", r.URL.Query().Get("token"))
		var body factory.Factory
		if !assert.NoError(f.t, json.NewDecoder(r.Body).Decode(&body)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.created = append(f.created, body)

		f.nextID++
		stored := factory.Factory{}
		for k, v := range body {
			stored[k] = v
		}
		stored["id"] = fmt.Sprintf("f-%d", f.nextID)
		stored["creator"] = map[string]interface{}{"userId": "user-1"}
		if !f.dropLinks {
			stored["links"] = []interface{}{
				map[string]interface{}{"rel": "self", "href": f.server.URL + "/api/factory/" + stored.ID()},
				map[string]interface{}{"rel": factory.RelAcceptNamed, "href": f.server.URL + "/f?name=" + body.Name()},
			}
		}
		f.factories[stored.ID()] = stored
		_ = json.NewEncoder(w).Encode(stored)

	case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/api/factory/"):
		assert.Equal(f.t, "tok-1", r.URL.Query().Get("token"))
		id := strings.TrimPrefix(r.URL.Path, "/api/factory/")
		if _, ok := f.factories[id]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		delete(f.factories, id)
		f.deleted = append(f.deleted, id)
		w.WriteHeader(http.StatusNoContent)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeProvisioningService) sortedIDs() []string {
	ids := make([]string, 0, len(f.factories))
	for id := range f.factories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (f *fakeProvisioningService) names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var names []string
	for _, id := range f.sortedIDs() {
		names = append(names, f.factories[id].Name())
	}
	return names
}

const abcTemplate = `{
	"id": "tmpl-abc",
	"name": "abc",
	"v": "4.0",
	"creator": {"userId": "user-1"},
	"policies": {"create": "perClick"},
	"workspace": {
		"projects": [
			{"name": "abc", "source": {"type": "git", "location": "https://git.example.com/abc.git", "parameters": {"keepVcs": "true"}}}
		]
	}
}`

func abcIssue() IssueContext {
	return IssueContext{ID: "10001", Key: "ABC-1", ProjectKey: "ABC", ProjectName: "Alpha"}
}

func TestProvisioner_CreatesDevelopAndReviewFactories(t *testing.T) {
	fake := newFakeProvisioningService(t)
	fake.seed(abcTemplate)

	links, err := NewProvisioner(fake.api()).Provision(context.Background(), fake.settings(), abcIssue())
	require.NoError(t, err)

	assert.Equal(t, fake.server.URL+"/f?name=ABC-1-develop-factory", links.Develop)
	assert.Equal(t, fake.server.URL+"/f?name=ABC-1-review-factory", links.Review)

	require.Len(t, fake.created, 2)
	develop, review := fake.created[0], fake.created[1]

	assert.Equal(t, "ABC-1-develop-factory", develop.Name())
	assert.Equal(t, factory.PolicyPerUser, develop.CreatePolicy())
	assert.Equal(t, "ABC-1", develop.Parameters()["branch"])
	assert.Equal(t, factory.DefaultStartPoint, develop.Parameters()["startPoint"])
	assert.Equal(t, "true", develop.Parameters()["keepVcs"])
	assert.NotContains(t, develop, "id")
	assert.NotContains(t, develop, "creator")

	assert.Equal(t, "ABC-1-review-factory", review.Name())
	assert.Equal(t, factory.PolicyPerClick, review.CreatePolicy())
	assert.Equal(t, "ABC-1", review.Parameters()["branch"], "review inherits the develop branch")
	assert.NotContains(t, review, "id")
	assert.NotContains(t, review, "creator")

	assert.Empty(t, fake.deleted)
	assert.ElementsMatch(t, []string{"ABC-1-develop-factory", "ABC-1-review-factory", "abc"}, fake.names())
}

func TestProvisioner_TemplateNotFound(t *testing.T) {
	fake := newFakeProvisioningService(t)

	_, err := NewProvisioner(fake.api()).Provision(context.Background(), fake.settings(), abcIssue())

	require.ErrorIs(t, err, ErrResourceNotFound)
	assert.Empty(t, fake.created)
}

func TestProvisioner_NoSession(t *testing.T) {
	fake := newFakeProvisioningService(t)
	fake.seed(abcTemplate)
	fake.rejectLogin = true

	_, err := NewProvisioner(fake.api()).Provision(context.Background(), fake.settings(), abcIssue())

	require.ErrorIs(t, err, ErrAuthenticationFailed)
	assert.ErrorIs(t, err, client.ErrNoSessionObtained)
	assert.Empty(t, fake.created)
}

func TestProvisioner_LinkMissingRemovesCreatedFactories(t *testing.T) {
	fake := newFakeProvisioningService(t)
	fake.seed(abcTemplate)
	fake.dropLinks = true

	_, err := NewProvisioner(fake.api()).Provision(context.Background(), fake.settings(), abcIssue())

	require.ErrorIs(t, err, ErrLinkMissing)
	assert.Len(t, fake.created, 2)
	assert.Equal(t, []string{"f-2", "f-1"}, fake.deleted, "newest factory is removed first")
	assert.Equal(t, []string{"abc"}, fake.names())
}

func TestProvisioner_ReviewCreateFailureRemovesDevelop(t *testing.T) {
	api := new(mockFactoryAPI)
	settings := repository.ConnectionSettings{InstanceURL: "http://codenvy", Username: "admin", Password: "secret"}
	session := client.Session{Token: "tok-1"}

	var tmpl factory.Factory
	require.NoError(t, json.Unmarshal([]byte(abcTemplate), &tmpl))
	develop := factory.Factory{"id": "dev-1", "name": "ABC-1-develop-factory"}

	api.On("Authenticate", mockAnyCtx, "http://codenvy", "admin", "secret").Return(session, nil).Once()
	api.On("ResolveOwnerID", mockAnyCtx, "http://codenvy", "admin").Return("", nil).Once()
	api.On("FindByName", mockAnyCtx, "http://codenvy", "abc", "", session).Return([]factory.Factory{tmpl}, nil).Once()
	api.On("Create", mockAnyCtx, "http://codenvy", mockFactoryNamed("ABC-1-develop-factory"), session).Return(develop, nil).Once()
	api.On("Create", mockAnyCtx, "http://codenvy", mockFactoryNamed("ABC-1-review-factory"), session).Return(nil, &client.APIError{StatusCode: 500}).Once()
	api.On("Delete", mockAnyCtx, "http://codenvy", "dev-1", session).Return(nil).Once()

	_, err := NewProvisioner(api).Provision(context.Background(), settings, abcIssue())

	require.ErrorIs(t, err, ErrTransport)
	var apiErr *client.APIError
	assert.ErrorAs(t, err, &apiErr)
	api.AssertExpectations(t)
}

func TestDecommissioner_DeletesFirstMatch(t *testing.T) {
	fake := newFakeProvisioningService(t)
	fake.seed(`{"id": "tmpl-a", "name": "abc-1-develop-factory"}`)
	fake.seed(`{"id": "tmpl-b", "name": "abc-1-develop-factory"}`)
	fake.seed(`{"id": "tmpl-c", "name": "abc-1-review-factory"}`)

	err := NewDecommissioner(fake.api()).Decommission(context.Background(), fake.settings(), "ABC-1", factory.KindDevelop)
	require.NoError(t, err)

	assert.Equal(t, []string{"tmpl-a"}, fake.deleted)
	assert.ElementsMatch(t, []string{"abc-1-develop-factory", "abc-1-review-factory"}, fake.names())
}

func TestDecommissioner_NotFound(t *testing.T) {
	fake := newFakeProvisioningService(t)
	fake.seed(`{"id": "tmpl-a", "name": "abc-1-develop-factory"}`)

	err := NewDecommissioner(fake.api()).Decommission(context.Background(), fake.settings(), "ABC-1", factory.KindReview)

	require.ErrorIs(t, err, ErrResourceNotFound)
	assert.Empty(t, fake.deleted)
}

func TestDecommissioner_ProvisionedNamesDoNotMatchUppercaseKeys(t *testing.T) {
	fake := newFakeProvisioningService(t)
	fake.seed(abcTemplate)

	_, err := NewProvisioner(fake.api()).Provision(context.Background(), fake.settings(), abcIssue())
	require.NoError(t, err)

	err = NewDecommissioner(fake.api()).Decommission(context.Background(), fake.settings(), "ABC-1", factory.KindDevelop)
	assert.ErrorIs(t, err, ErrResourceNotFound)
}
