package creation

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kiln/pkg/model"
)

const (
	imageInputField  = "prompt"
	imageOutputField = "result"
	modelInputField  = "input_image"
)

// modelOutputs lists the fields an image-to-3D app may answer with, in order
// of preference, and the extension of the saved artifact
var modelOutputs = []struct {
	field string
	ext   string
}{
	{field: "generated_object", ext: ".glb"},
	{field: "video_object", ext: ".mp4"},
}

// artifact is a generated file saved to storage
type artifact struct {
	data []byte
	path string
}

func (uc *UseCase) generateImage(ctx context.Context, rid model.RequestID, prompt string) (*artifact, error) {
	output, err := uc.invoker.Invoke(ctx, uc.imageApp, map[string]any{
		imageInputField: prompt,
	})
	if err != nil {
		return nil, err
	}

	data, err := artifactBytes(output[imageOutputField])
	if err != nil {
		return nil, goerr.Wrap(err, "image app returned no image", goerr.V("app_id", uc.imageApp))
	}

	path, err := uc.save(ctx, rid.String()+"_image.png", data)
	if err != nil {
		return nil, err
	}
	return &artifact{data: data, path: path}, nil
}

func (uc *UseCase) generateModel(ctx context.Context, rid model.RequestID, image []byte) (*artifact, error) {
	output, err := uc.invoker.Invoke(ctx, uc.modelApp, map[string]any{
		modelInputField: base64.StdEncoding.EncodeToString(image),
	})
	if err != nil {
		return nil, err
	}

	for _, out := range modelOutputs {
		v, ok := output[out.field]
		if !ok || v == nil {
			continue
		}
		data, err := artifactBytes(v)
		if err != nil {
			return nil, goerr.Wrap(err, "invalid 3D object", goerr.V("field", out.field))
		}
		path, err := uc.save(ctx, rid.String()+"_model"+out.ext, data)
		if err != nil {
			return nil, err
		}
		return &artifact{data: data, path: path}, nil
	}

	return nil, goerr.New("model app returned no 3D object", goerr.V("app_id", uc.modelApp))
}

func (uc *UseCase) save(ctx context.Context, key string, data []byte) (string, error) {
	w, err := uc.storage.Put(ctx, key)
	if err != nil {
		return "", goerr.Wrap(err, "failed to open artifact", goerr.V("key", key))
	}
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return "", goerr.Wrap(err, "failed to write artifact", goerr.V("key", key))
	}
	if err := w.Close(); err != nil {
		return "", goerr.Wrap(err, "failed to save artifact", goerr.V("key", key))
	}
	return uc.storage.URI(key), nil
}

// artifactBytes accepts resolved resource bytes, a base64 string or a list
// holding one of them
func artifactBytes(v any) ([]byte, error) {
	switch v := v.(type) {
	case []byte:
		if len(v) == 0 {
			return nil, goerr.New("artifact is empty")
		}
		return v, nil

	case string:
		s := strings.TrimSpace(v)
		if i := strings.Index(s, ";base64,"); strings.HasPrefix(s, "data:") && i >= 0 {
			s = s[i+len(";base64,"):]
		}
		data, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, goerr.Wrap(err, "artifact is not base64 encoded")
		}
		if len(data) == 0 {
			return nil, goerr.New("artifact is empty")
		}
		return data, nil

	case []any:
		if len(v) == 0 {
			return nil, goerr.New("artifact list is empty")
		}
		return artifactBytes(v[0])

	case nil:
		return nil, goerr.New("artifact is missing")

	default:
		return nil, goerr.New("unexpected artifact type", goerr.V("type", typeName(v)))
	}
}

func typeName(v any) string {
	switch v.(type) {
	case map[string]any:
		return "object"
	case float64:
		return "number"
	case bool:
		return "bool"
	default:
		return "unknown"
	}
}
