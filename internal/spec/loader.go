package spec

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi2"
	"github.com/getkin/kin-openapi/openapi2conv"
	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"

	"github.com/Devliang24/casecraft/internal/errors"
	"github.com/Devliang24/casecraft/internal/log"
)

// methodOrder fixes the normalization order for operations on one path.
var methodOrder = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"}

// Loader parses OpenAPI 3.0 and Swagger 2.0 documents into normalized Endpoints.
type Loader struct {
	client *http.Client
	logger *log.Logger
}

// NewLoader creates a document loader.
func NewLoader(logger *log.Logger) *Loader {
	if logger == nil {
		logger = log.Global()
	}
	return &Loader{
		client: &http.Client{Timeout: 30 * time.Second},
		logger: logger,
	}
}

// Load reads an API document from a URL or local path and normalizes it.
func (l *Loader) Load(ctx context.Context, source string) (*Document, error) {
	data, err := l.read(ctx, source)
	if err != nil {
		return nil, errors.NewSpecUnreadableError(source, err)
	}

	jsonData, err := toJSON(data)
	if err != nil {
		return nil, errors.NewSpecMalformedError(source, err)
	}

	var probe struct {
		OpenAPI string `json:"openapi"`
		Swagger string `json:"swagger"`
	}
	if err := json.Unmarshal(jsonData, &probe); err != nil {
		return nil, errors.NewSpecMalformedError(source, err)
	}

	var doc *openapi3.T
	switch {
	case strings.HasPrefix(probe.OpenAPI, "3."):
		doc, err = l.loadV3(ctx, data)
	case probe.Swagger == "2.0":
		doc, err = l.loadV2(ctx, jsonData)
	default:
		version := probe.OpenAPI
		if version == "" {
			version = probe.Swagger
		}
		return nil, errors.NewSpecVersionError(version)
	}
	if err != nil {
		return nil, errors.NewSpecMalformedError(source, err)
	}

	endpoints := l.extractEndpoints(doc)
	if len(endpoints) == 0 {
		return nil, errors.New(errors.ErrCodeSpecNoEndpoints,
			fmt.Sprintf("no operations found in API document: %s", source))
	}

	title, version := "", ""
	if doc.Info != nil {
		title = doc.Info.Title
		version = doc.Info.Version
	}

	l.logger.Info("loaded API document",
		"source", source, "title", title, "endpoints", len(endpoints))

	return &Document{
		Title:      title,
		Version:    version,
		Source:     source,
		SourceHash: SourceHash(data),
		Endpoints:  endpoints,
	}, nil
}

// read fetches the raw document bytes from a URL or the filesystem.
func (l *Loader) read(ctx context.Context, source string) ([]byte, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
		if err != nil {
			return nil, err
		}
		resp, err := l.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("unexpected status %d fetching document", resp.StatusCode)
		}
		return io.ReadAll(resp.Body)
	}
	return os.ReadFile(source)
}

func (l *Loader) loadV3(ctx context.Context, data []byte) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	loader.Context = ctx
	// External $ref is out of scope and must fail loudly.
	loader.IsExternalRefsAllowed = false

	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, err
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, err
	}
	return doc, nil
}

// loadV2 parses a Swagger 2.0 document and converts it to the OpenAPI 3.0
// shape, folding consumes/produces and body parameters into request bodies.
func (l *Loader) loadV2(ctx context.Context, jsonData []byte) (*openapi3.T, error) {
	var doc2 openapi2.T
	if err := json.Unmarshal(jsonData, &doc2); err != nil {
		return nil, err
	}

	doc, err := openapi2conv.ToV3(&doc2)
	if err != nil {
		return nil, fmt.Errorf("convert Swagger 2.0: %w", err)
	}

	loader := openapi3.NewLoader()
	loader.Context = ctx
	loader.IsExternalRefsAllowed = false
	if err := loader.ResolveRefsIn(doc, nil); err != nil {
		return nil, err
	}
	return doc, nil
}

// extractEndpoints flattens the document into normalized Endpoint records,
// paths sorted lexically and methods in canonical order within each path.
func (l *Loader) extractEndpoints(doc *openapi3.T) []Endpoint {
	if doc.Paths == nil {
		return nil
	}

	pathMap := doc.Paths.Map()
	paths := make([]string, 0, len(pathMap))
	for p := range pathMap {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var endpoints []Endpoint
	for _, path := range paths {
		item := pathMap[path]
		ops := item.Operations()
		for _, method := range methodOrder {
			op, ok := ops[method]
			if !ok || op == nil {
				continue
			}
			endpoints = append(endpoints, l.normalizeOperation(doc, path, method, item, op))
		}
	}
	return endpoints
}

func (l *Loader) normalizeOperation(doc *openapi3.T, path, method string, item *openapi3.PathItem, op *openapi3.Operation) Endpoint {
	ep := Endpoint{
		Method:      method,
		Path:        path,
		OperationID: op.OperationID,
		Summary:     op.Summary,
		Description: op.Description,
		Tags:        append([]string(nil), op.Tags...),
	}

	ep.Parameters = normalizeParameters(item.Parameters, op.Parameters)

	if op.RequestBody != nil && op.RequestBody.Value != nil {
		ep.RequestBodyRequired = op.RequestBody.Value.Required
		if mt := preferredMediaType(op.RequestBody.Value.Content); mt != nil && mt.Schema != nil {
			ep.RequestBody = SchemaToMap(mt.Schema)
		}
	}

	if op.Responses != nil {
		ep.Responses = make(map[string]map[string]interface{})
		for status, ref := range op.Responses.Map() {
			var schema map[string]interface{}
			if ref != nil && ref.Value != nil {
				if mt := preferredMediaType(ref.Value.Content); mt != nil && mt.Schema != nil {
					schema = SchemaToMap(mt.Schema)
				}
			}
			ep.Responses[status] = schema
		}
	}

	ep.AuthRequired, ep.AuthKind = resolveAuth(doc, op)
	return ep
}

// normalizeParameters merges path-item and operation parameters; operation
// parameters win on name+location collisions. Path parameters are always
// required regardless of what the document says.
func normalizeParameters(inherited, own openapi3.Parameters) []Parameter {
	merged := make(map[string]Parameter)
	var order []string

	add := func(params openapi3.Parameters) {
		for _, ref := range params {
			if ref == nil || ref.Value == nil {
				continue
			}
			p := ref.Value
			key := p.In + " " + p.Name
			if _, seen := merged[key]; !seen {
				order = append(order, key)
			}
			param := Parameter{
				Name:        p.Name,
				In:          p.In,
				Required:    p.Required || p.In == openapi3.ParameterInPath,
				Description: p.Description,
			}
			if p.Schema != nil {
				param.Schema = SchemaToMap(p.Schema)
			}
			merged[key] = param
		}
	}
	add(inherited)
	add(own)

	out := make([]Parameter, 0, len(order))
	for _, key := range order {
		out = append(out, merged[key])
	}
	return out
}

// preferredMediaType picks the JSON media type if present, otherwise the
// lexically first one so normalization stays deterministic.
func preferredMediaType(content openapi3.Content) *openapi3.MediaType {
	if content == nil {
		return nil
	}
	if mt, ok := content["application/json"]; ok {
		return mt
	}
	var keys []string
	for k := range content {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if strings.Contains(strings.ToLower(k), "json") {
			return content[k]
		}
	}
	if len(keys) > 0 {
		return content[keys[0]]
	}
	return nil
}

// resolveAuth derives the declared auth requirement for an operation.
// Operation-level security overrides the document default; an empty
// requirement list means the endpoint is explicitly open.
func resolveAuth(doc *openapi3.T, op *openapi3.Operation) (bool, AuthKind) {
	var requirements openapi3.SecurityRequirements
	if op.Security != nil {
		requirements = *op.Security
	} else {
		requirements = doc.Security
	}

	var schemeName string
	for _, req := range requirements {
		for name := range req {
			schemeName = name
			break
		}
		if schemeName != "" {
			break
		}
	}
	if schemeName == "" {
		return false, AuthNone
	}
	return true, schemeKind(doc, schemeName)
}

func schemeKind(doc *openapi3.T, name string) AuthKind {
	if doc.Components == nil {
		return AuthBearer
	}
	ref, ok := doc.Components.SecuritySchemes[name]
	if !ok || ref.Value == nil {
		return AuthBearer
	}
	scheme := ref.Value
	switch scheme.Type {
	case "apiKey":
		return AuthAPIKey
	case "http":
		if strings.EqualFold(scheme.Scheme, "basic") {
			return AuthBasic
		}
		return AuthBearer
	default:
		return AuthBearer
	}
}

// toJSON returns the document as JSON bytes, converting from YAML when needed.
func toJSON(data []byte) ([]byte, error) {
	trimmed := strings.TrimLeft(string(data), " \t\r\n")
	if strings.HasPrefix(trimmed, "{") {
		return data, nil
	}
	var node interface{}
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, err
	}
	return json.Marshal(normalizeYAML(node))
}

// normalizeYAML rewrites yaml.v3 decoding artifacts into JSON-friendly values.
func normalizeYAML(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = normalizeYAML(item)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[fmt.Sprintf("%v", k)] = normalizeYAML(item)
		}
		return out
	case []interface{}:
		for i, item := range val {
			val[i] = normalizeYAML(item)
		}
		return val
	default:
		return v
	}
}
