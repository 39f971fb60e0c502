// Package factory models the remote workspace factory resource and the pure
// transformations applied to it: naming, derivation from a template and
// public link extraction.
//
// A Factory is kept as a generic JSON object so that every field of the
// template the service does not know about survives derivation untouched.
package factory

import (
	"errors"
	"strings"
)

// Policy is the remote-side create policy of a factory.
type Policy string

const (
	// PolicyPerUser lets each user instantiate one workspace (Develop).
	PolicyPerUser Policy = "perUser"
	// PolicyPerClick instantiates a fresh workspace on every click (Review).
	PolicyPerClick Policy = "perClick"
)

// RelAcceptNamed is the link relation carrying the public factory URL.
const RelAcceptNamed = "accept-named"

// DefaultStartPoint is the start point set next to the injected branch.
const DefaultStartPoint = "origin/master"

// ErrNoWorkspaceProject is returned when a branch override is requested on a
// factory without workspace.projects[0].source.parameters.
var ErrNoWorkspaceProject = errors.New("factory has no workspace project to set the branch on")

// Factory is a factory resource as exchanged with the provisioning API.
type Factory map[string]interface{}

// Link is one entry of a factory's links list.
type Link struct {
	Rel  string `json:"rel"`
	Href string `json:"href"`
}

// ID returns the factory id, empty when absent.
func (f Factory) ID() string {
	return stringField(f, "id")
}

// Name returns the factory name, empty when absent.
func (f Factory) Name() string {
	return stringField(f, "name")
}

// CreatePolicy returns policies.create, empty when absent.
func (f Factory) CreatePolicy() Policy {
	policies, ok := f["policies"].(map[string]interface{})
	if !ok {
		return ""
	}
	return Policy(stringField(policies, "create"))
}

// Parameters returns workspace.projects[0].source.parameters, nil when the
// path does not exist.
func (f Factory) Parameters() map[string]interface{} {
	workspace, ok := f["workspace"].(map[string]interface{})
	if !ok {
		return nil
	}
	projects, ok := workspace["projects"].([]interface{})
	if !ok || len(projects) == 0 {
		return nil
	}
	project, ok := projects[0].(map[string]interface{})
	if !ok {
		return nil
	}
	source, ok := project["source"].(map[string]interface{})
	if !ok {
		return nil
	}
	parameters, ok := source["parameters"].(map[string]interface{})
	if !ok {
		return nil
	}
	return parameters
}

// Links returns the well-formed entries of the links list.
func (f Factory) Links() []Link {
	raw, ok := f["links"].([]interface{})
	if !ok {
		return nil
	}
	links := make([]Link, 0, len(raw))
	for _, item := range raw {
		entry, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		links = append(links, Link{Rel: stringField(entry, "rel"), Href: stringField(entry, "href")})
	}
	return links
}

// NamedURL returns the href of the first accept-named link.
func NamedURL(f Factory) (string, bool) {
	for _, link := range f.Links() {
		if link.Rel == RelAcceptNamed {
			return link.Href, true
		}
	}
	return "", false
}

// Derive returns a copy of template renamed to name with policies.create set
// to policy and the identity fields (id, creator) removed. When branch is
// not empty the first workspace project is pointed at that branch, starting
// from DefaultStartPoint. template is never modified.
func Derive(template Factory, name string, policy Policy, branch string) (Factory, error) {
	derived := Factory(deepCopyMap(template))

	if policies, ok := derived["policies"].(map[string]interface{}); ok {
		delete(policies, "create")
		policies["create"] = string(policy)
	} else {
		derived["policies"] = map[string]interface{}{"create": string(policy)}
	}

	delete(derived, "name")
	derived["name"] = name

	delete(derived, "id")
	delete(derived, "creator")

	if branch != "" {
		parameters := derived.Parameters()
		if parameters == nil {
			return nil, ErrNoWorkspaceProject
		}
		parameters["branch"] = branch
		parameters["startPoint"] = DefaultStartPoint
	}

	return derived, nil
}

func stringField(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}

func deepCopyMap(src map[string]interface{}) map[string]interface{} {
	if src == nil {
		return map[string]interface{}{}
	}
	dst := make(map[string]interface{}, len(src))
	for k, v := range src {
		dst[k] = deepCopyValue(v)
	}
	return dst
}

func deepCopyValue(v interface{}) interface{} {
	switch t := v.(type) {
	case Factory:
		return deepCopyMap(t)
	case map[string]interface{}:
		return deepCopyMap(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, item := range t {
			out[i] = deepCopyValue(item)
		}
		return out
	default:
		return v
	}
}

// Kind distinguishes the two per-issue factories.
type Kind int

const (
	KindDevelop Kind = iota
	KindReview
)

func (k Kind) String() string {
	if k == KindReview {
		return "review"
	}
	return "develop"
}

// Suffix is appended to the issue key to name the factory.
func (k Kind) Suffix() string {
	return "-" + k.String() + "-factory"
}

// Policy is the create policy a factory of this kind is provisioned with.
func (k Kind) Policy() Policy {
	if k == KindReview {
		return PolicyPerClick
	}
	return PolicyPerUser
}

// CreationName is the name given to the factory at provisioning time. The
// issue key keeps its case.
func CreationName(issueKey string, kind Kind) string {
	return issueKey + kind.Suffix()
}

// DecommissionName is the name searched for when the issue terminates. The
// issue key is lowercased, so it only matches CreationName for keys that
// are already lowercase.
func DecommissionName(issueKey string, kind Kind) string {
	return strings.ToLower(issueKey) + kind.Suffix()
}

// TemplateName is the name of the project's template factory.
func TemplateName(projectKey string) string {
	return strings.ToLower(projectKey)
}
