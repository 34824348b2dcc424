// Package source loads model trees and phase orderings from the model repository.
package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/Faultbox/bimscene/pkg/scene"
)

// Repository errors.
var (
	ErrModelNotFound  = errors.New("model not found")
	ErrInvalidModelID = errors.New("invalid model id")
	ErrInvalidJSON    = errors.New("invalid model json")
)

// Repository fetches the root node of a model tree.
type Repository interface {
	Fetch(ctx context.Context, modelID string) (*scene.Node, error)
}

// FileRepository reads model exports stored as <Dir>/<modelID>.json.
type FileRepository struct {
	Dir    string
	Schema scene.Schema
	Log    *zap.Logger
}

// NewFileRepository creates a repository rooted at dir.
func NewFileRepository(dir string, schema scene.Schema, log *zap.Logger) *FileRepository {
	if log == nil {
		log = zap.NewNop()
	}
	return &FileRepository{Dir: dir, Schema: schema, Log: log}
}

// Fetch reads and decodes a model's root node.
func (r *FileRepository) Fetch(ctx context.Context, modelID string) (*scene.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if modelID == "" || strings.ContainsAny(modelID, `/\`) || modelID == "." || modelID == ".." {
		return nil, fmt.Errorf("%w: %q", ErrInvalidModelID, modelID)
	}

	path := filepath.Join(r.Dir, modelID+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrModelNotFound, modelID)
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	obj, err := ParseObject(data)
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", modelID, err)
	}

	root, err := scene.DecodeNode(obj, r.Schema)
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", modelID, err)
	}

	r.Log.Debug("model fetched",
		zap.String("model", modelID),
		zap.Int("bytes", len(data)),
		zap.String("root", root.ID))
	return root, nil
}

// ParseObject decodes a JSON document whose top level is an object.
// Object keys keep their document order; numbers decode as float64.
func ParseObject(data []byte) (*scene.Object, error) {
	if !gjson.ValidBytes(data) {
		return nil, ErrInvalidJSON
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		return nil, fmt.Errorf("%w: top level is not an object", ErrInvalidJSON)
	}
	return convertObject(doc), nil
}

func convertObject(r gjson.Result) *scene.Object {
	obj := scene.NewObject()
	r.ForEach(func(key, value gjson.Result) bool {
		obj.Set(key.String(), convert(value))
		return true
	})
	return obj
}

func convert(r gjson.Result) any {
	switch r.Type {
	case gjson.False:
		return false
	case gjson.True:
		return true
	case gjson.Number:
		return r.Float()
	case gjson.String:
		return r.String()
	case gjson.JSON:
		if r.IsArray() {
			arr := make([]any, 0)
			r.ForEach(func(_, value gjson.Result) bool {
				arr = append(arr, convert(value))
				return true
			})
			return arr
		}
		return convertObject(r)
	}
	return nil
}
