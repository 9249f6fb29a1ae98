package gateway

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/georgeshao/fio-dashboard/internal/cache"
	"github.com/georgeshao/fio-dashboard/pkg/types"
)

// New test run data can introduce new option values and time series points,
// so test run writes invalidate those classes too.
var (
	testRunDependents = []cache.Class{cache.TestRuns, cache.FilterOptions, cache.TimeSeries}
	userDependents    = []cache.Class{cache.Users}
)

// mutate sends a write and, once it succeeded, invalidates the dependent
// classes before returning.
func (g *Gateway) mutate(ctx context.Context, c call, dependents []cache.Class) ([]byte, error) {
	body, err := g.send(ctx, c)
	if err != nil {
		return nil, err
	}
	g.Invalidate(dependents...)
	return body, nil
}

func (g *Gateway) UpdateTestRun(ctx context.Context, id int64, update types.TestRunUpdate) (types.TestRun, error) {
	c, err := jsonCall(cache.TestRuns, http.MethodPut, testRunPath(id), update)
	if err != nil {
		return types.TestRun{}, err
	}
	body, err := g.mutate(ctx, c, testRunDependents)
	if err != nil {
		return types.TestRun{}, err
	}
	return decodeObject[types.TestRun](body)
}

func (g *Gateway) BulkUpdateTestRuns(ctx context.Context, req types.BulkUpdateRequest) (types.BulkUpdateResponse, error) {
	c, err := jsonCall(cache.TestRuns, http.MethodPut, bulkUpdatePath, req)
	if err != nil {
		return types.BulkUpdateResponse{}, err
	}
	body, err := g.mutate(ctx, c, testRunDependents)
	if err != nil {
		return types.BulkUpdateResponse{}, err
	}
	return decodeObject[types.BulkUpdateResponse](body)
}

func (g *Gateway) DeleteTestRun(ctx context.Context, id int64) error {
	_, err := g.mutate(ctx, call{
		class:  cache.TestRuns,
		method: http.MethodDelete,
		path:   testRunPath(id),
	}, testRunDependents)
	return err
}

// ImportFile uploads one FIO JSON result as multipart form data.
func (g *Gateway) ImportFile(ctx context.Context, filename string, data []byte, meta types.ImportMetadata) (types.ImportResponse, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return types.ImportResponse{}, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return types.ImportResponse{}, fmt.Errorf("failed to write form file: %w", err)
	}
	for name, value := range meta.Fields() {
		if err := w.WriteField(name, value); err != nil {
			return types.ImportResponse{}, fmt.Errorf("failed to write field %s: %w", name, err)
		}
	}
	if err := w.Close(); err != nil {
		return types.ImportResponse{}, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	body, err := g.mutate(ctx, call{
		class:       cache.TestRuns,
		method:      http.MethodPost,
		path:        importPath,
		body:        &buf,
		contentType: w.FormDataContentType(),
	}, testRunDependents)
	if err != nil {
		return types.ImportResponse{}, err
	}
	return decodeObject[types.ImportResponse](body)
}

func (g *Gateway) CreateUser(ctx context.Context, req types.CreateUserRequest) (types.User, error) {
	c, err := jsonCall(cache.Users, http.MethodPost, usersPath, req)
	if err != nil {
		return types.User{}, err
	}
	body, err := g.mutate(ctx, c, userDependents)
	if err != nil {
		return types.User{}, err
	}
	return decodeObject[types.User](body)
}

func (g *Gateway) UpdateUser(ctx context.Context, username string, req types.UpdateUserRequest) (types.User, error) {
	c, err := jsonCall(cache.Users, http.MethodPut, userPath(username), req)
	if err != nil {
		return types.User{}, err
	}
	body, err := g.mutate(ctx, c, userDependents)
	if err != nil {
		return types.User{}, err
	}
	return decodeObject[types.User](body)
}

func (g *Gateway) DeleteUser(ctx context.Context, username string) error {
	_, err := g.mutate(ctx, call{
		class:  cache.Users,
		method: http.MethodDelete,
		path:   userPath(username),
	}, userDependents)
	return err
}
