// Package elements derives phase metadata for the elements of a flattened scene.
package elements

import (
	"fmt"
	"reflect"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/Faultbox/bimscene/pkg/phase"
	"github.com/Faultbox/bimscene/pkg/scene"
)

// Extractor reads phase tags from node property bags.
type Extractor struct {
	CreatedKey    string
	DemolishedKey string
	Log           *zap.Logger
}

// NewExtractor returns an extractor for the given tag keys.
func NewExtractor(createdKey, demolishedKey string, log *zap.Logger) *Extractor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Extractor{CreatedKey: createdKey, DemolishedKey: demolishedKey, Log: log}
}

// FromViews returns one entry per node owning at least one view, in the
// order the nodes first appear.
func (e *Extractor) FromViews(views []scene.RenderView) []phase.ElementMeta {
	seen := make(map[string]struct{}, len(views))
	metas := make([]phase.ElementMeta, 0, len(views))
	for i := range views {
		v := &views[i]
		if _, ok := seen[v.NodeID]; ok {
			continue
		}
		seen[v.NodeID] = struct{}{}
		metas = append(metas, e.Meta(v.NodeID, v.Props))
	}
	return metas
}

// Meta decodes one node's tags. Scalars are converted weakly, so numeric
// phase ids become their decimal text. A phase given as an object is
// identified by its "id" or "name" field.
func (e *Extractor) Meta(nodeID string, props *scene.Object) phase.ElementMeta {
	raw := map[string]any{"id": nodeID}
	if v, ok := get(props, e.CreatedKey); ok && v != nil {
		raw["created"] = v
	}
	if v, ok := get(props, e.DemolishedKey); ok && v != nil {
		raw["demolished"] = v
	}

	var meta phase.ElementMeta
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       phaseObjectHook,
		WeaklyTypedInput: true,
		Result:           &meta,
	})
	if err == nil {
		err = dec.Decode(raw)
	}
	if err != nil {
		// Keep the raw text so the index reports the tag as an unknown phase.
		e.Log.Warn("undecodable phase tag",
			zap.String("element", nodeID),
			zap.Error(err))
		meta = phase.ElementMeta{ID: nodeID}
		if v, ok := raw["created"]; ok {
			meta.Created = phase.ID(fmt.Sprint(v))
		}
		if v, ok := raw["demolished"]; ok {
			meta.Demolished = phase.ID(fmt.Sprint(v))
		}
	}
	return meta
}

func phaseObjectHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	obj, ok := data.(*scene.Object)
	if !ok || to.Kind() != reflect.String {
		return data, nil
	}
	for _, key := range []string{"id", "name"} {
		if v, found := obj.Get(key); found {
			return v, nil
		}
	}
	return data, nil
}

func get(props *scene.Object, key string) (any, bool) {
	if props == nil || key == "" {
		return nil, false
	}
	return props.Get(key)
}
