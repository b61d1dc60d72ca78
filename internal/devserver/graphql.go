package devserver

import (
	"context"
	"errors"
	"fmt"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"

	"github.com/nikbrunner/bmsync/internal/api"
	"github.com/nikbrunner/bmsync/internal/model"
)

// Operation is the executable part of a GraphQL document: its type and
// the fields selected at the root.
type Operation struct {
	Type   string // query, mutation or subscription
	Fields []*ast.Field
}

// FieldNames lists the root field names in document order.
func (op Operation) FieldNames() []string {
	names := make([]string, len(op.Fields))
	for i, f := range op.Fields {
		names[i] = f.Name
	}
	return names
}

// ParseOperation parses query and picks the operation named operationName.
// With an empty name the document must hold exactly one operation.
func ParseOperation(query, operationName string) (Operation, error) {
	doc, err := parser.ParseQuery(&ast.Source{Name: "request", Input: query})
	if err != nil {
		return Operation{}, fmt.Errorf("invalid document: %v", err)
	}

	var def *ast.OperationDefinition
	switch {
	case len(doc.Operations) == 0:
		return Operation{}, errors.New("document has no operation")
	case operationName == "" && len(doc.Operations) > 1:
		return Operation{}, errors.New("operationName is required for documents with several operations")
	case operationName == "":
		def = doc.Operations[0]
	default:
		def = doc.Operations.ForName(operationName)
		if def == nil {
			return Operation{}, fmt.Errorf("unknown operation %q", operationName)
		}
	}

	op := Operation{Type: string(def.Operation)}
	for _, sel := range def.SelectionSet {
		f, ok := sel.(*ast.Field)
		if !ok {
			return Operation{}, errors.New("fragments are not supported")
		}
		op.Fields = append(op.Fields, f)
	}
	if len(op.Fields) == 0 {
		return Operation{}, errors.New("operation selects no fields")
	}
	return op, nil
}

type request struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName"`
	Variables     map[string]any `json:"variables"`
}

type response struct {
	Data   map[string]any    `json:"data,omitempty"`
	Errors api.GraphQLErrors `json:"errors,omitempty"`
}

// resolved is the result of one root field. Notify is true when the
// matching subscription should be told about it.
type resolved struct {
	field  *ast.Field
	value  any
	notify bool
}

// errorType values follow the backend's error classification.
const (
	errorTypeValidation   = "ValidationError"
	errorTypeNotFound     = "NotFound"
	errorTypeUnauthorized = "UnauthorizedException"
	errorTypeInternal     = "InternalFailure"
)

func gqlError(errorType, format string, args ...any) api.GraphQLErrors {
	return api.GraphQLErrors{{
		ErrorType:  errorType,
		Message:    fmt.Sprintf(format, args...),
		Extensions: map[string]any{"errorType": errorType},
	}}
}

// args reads field arguments, inline literals and variables alike.
type args struct {
	field *ast.Field
	vars  map[string]any
}

func (a args) value(name string) (any, error) {
	arg := a.field.Arguments.ForName(name)
	if arg == nil || arg.Value == nil {
		return nil, nil
	}
	return arg.Value.Value(a.vars)
}

func (a args) str(name string) (string, error) {
	v, err := a.value(name)
	if err != nil || v == nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("argument %s must be a string", name)
	}
	return s, nil
}

// strList returns nil when the argument is absent.
func (a args) strList(name string) ([]string, error) {
	v, err := a.value(name)
	if err != nil || v == nil {
		return nil, err
	}
	items, ok := v.([]any)
	if !ok {
		// a single value is coerced to a one element list
		items = []any{v}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("argument %s must be a list of strings", name)
		}
		out = append(out, s)
	}
	return out, nil
}

// execute resolves every root field of op in order. Mutations run one after
// another; a failed field is null in the result and adds an error.
func execute(ctx context.Context, repo Repository, op Operation, vars map[string]any) ([]resolved, api.GraphQLErrors) {
	var (
		results []resolved
		errs    api.GraphQLErrors
	)
	for _, f := range op.Fields {
		res, ferrs := resolveField(ctx, repo, op.Type, f, vars)
		res.field = f
		if ferrs != nil {
			res.value, res.notify = nil, false
			errs = append(errs, ferrs...)
		}
		results = append(results, res)
	}
	return results, errs
}

func resolveField(ctx context.Context, repo Repository, opType string, f *ast.Field, vars map[string]any) (resolved, api.GraphQLErrors) {
	a := args{field: f, vars: vars}
	invalid := func(err error) (resolved, api.GraphQLErrors) {
		return resolved{}, gqlError(errorTypeValidation, "%s: %v", f.Name, err)
	}

	if f.Name == "__typename" {
		switch opType {
		case "mutation":
			return resolved{value: "Mutation"}, nil
		case "query":
			return resolved{value: "Query"}, nil
		}
	}

	switch opType + "." + f.Name {
	case "query.bookmarks":
		bookmarks, err := repo.List(ctx)
		if err != nil {
			return resolved{}, gqlError(errorTypeInternal, "%v", err)
		}
		return resolved{value: bookmarks}, nil

	case "mutation.createBookmark":
		title, err := a.str("title")
		if err != nil {
			return invalid(err)
		}
		url, err := a.str("url")
		if err != nil {
			return invalid(err)
		}
		if title == "" || url == "" {
			return resolved{}, gqlError(errorTypeValidation, "title and url are required")
		}
		b, err := repo.Create(ctx, title, url)
		if err != nil {
			return resolved{}, gqlError(errorTypeInternal, "%v", err)
		}
		return resolved{value: b, notify: true}, nil

	case "mutation.editBookmark":
		id, err := a.str("id")
		if err != nil {
			return invalid(err)
		}
		title, err := a.str("title")
		if err != nil {
			return invalid(err)
		}
		url, err := a.str("url")
		if err != nil {
			return invalid(err)
		}
		if id == "" {
			return resolved{}, gqlError(errorTypeValidation, "id is required")
		}
		b, err := repo.Update(ctx, id, title, url)
		if errors.Is(err, ErrNotFound) {
			return resolved{}, gqlError(errorTypeNotFound, "no bookmark with id %s", id)
		}
		if err != nil {
			return resolved{}, gqlError(errorTypeInternal, "%v", err)
		}
		return resolved{value: b, notify: true}, nil

	case "mutation.deleteBookmark":
		id, err := a.str("id")
		if err != nil {
			return invalid(err)
		}
		ok, err := repo.Delete(ctx, id)
		if err != nil {
			return resolved{}, gqlError(errorTypeInternal, "%v", err)
		}
		if !ok {
			// a delete of an unknown id resolves to null
			return resolved{value: nil}, nil
		}
		return resolved{value: model.DeletedBookmark{ID: id}, notify: true}, nil

	case "mutation.batchDeleteBookmarks":
		ids, err := a.strList("ids")
		if err != nil {
			return invalid(err)
		}
		if ids == nil {
			return resolved{}, gqlError(errorTypeValidation, "ids is required")
		}
		removed, err := repo.BatchDelete(ctx, ids)
		if err != nil {
			return resolved{}, gqlError(errorTypeInternal, "%v", err)
		}
		deleted := make([]model.DeletedBookmark, len(removed))
		for i, id := range removed {
			deleted[i] = model.DeletedBookmark{ID: id}
		}
		return resolved{value: deleted, notify: len(deleted) > 0}, nil
	}

	return resolved{}, gqlError(errorTypeValidation, "unsupported %s field %q", opType, f.Name)
}

// project shapes a resolved value by the field's selection set, keyed by
// alias. Bookmark lists project element-wise; null stays null.
func project(value any, sel ast.SelectionSet) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case model.Bookmark:
		return projectObject("Bookmark", map[string]any{"id": v.ID, "title": v.Title, "url": v.URL}, sel)
	case model.DeletedBookmark:
		return projectObject("Bookmark", map[string]any{"id": v.ID}, sel)
	case []model.Bookmark:
		out := make([]any, len(v))
		for i, b := range v {
			p, err := project(b, sel)
			if err != nil {
				return nil, err
			}
			out[i] = p
		}
		return out, nil
	case []model.DeletedBookmark:
		out := make([]any, len(v))
		for i, d := range v {
			p, err := project(d, sel)
			if err != nil {
				return nil, err
			}
			out[i] = p
		}
		return out, nil
	default:
		return v, nil
	}
}

func projectObject(typename string, fields map[string]any, sel ast.SelectionSet) (any, error) {
	if len(sel) == 0 {
		return fields, nil
	}
	out := make(map[string]any, len(sel))
	for _, s := range sel {
		f, ok := s.(*ast.Field)
		if !ok {
			return nil, errors.New("fragments are not supported")
		}
		if f.Name == "__typename" {
			out[f.Alias] = typename
			continue
		}
		v, ok := fields[f.Name]
		if !ok {
			return nil, fmt.Errorf("field %q is not available on %s", f.Name, typename)
		}
		out[f.Alias] = v
	}
	return out, nil
}
