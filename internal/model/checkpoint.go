package model

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"
)

// MetadataKey is the SafeTensors header entry holding free-form metadata.
const MetadataKey = "__metadata__"

// TensorHeader describes one tensor in a SafeTensors header.
type TensorHeader struct {
	DType       string   `json:"dtype"`
	Shape       []int64  `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"`
}

type namedParameter[B tensor.Backend] struct {
	name  string
	param *nn.Parameter[B]
}

// namedParameters lists the parameters under their StateDict keys, in
// alphabetical order.
func (c *Classifier[B]) namedParameters() []namedParameter[B] {
	var out []namedParameter[B]
	for _, layer := range []struct {
		index  int
		linear *nn.Linear[B]
	}{{0, c.hidden}, {2, c.output}} {
		prefix := strconv.Itoa(layer.index) + "."
		if b := layer.linear.Bias(); b != nil {
			out = append(out, namedParameter[B]{name: prefix + "bias", param: b})
		}
		out = append(out, namedParameter[B]{name: prefix + "weight", param: layer.linear.Weight()})
	}
	return out
}

// Metadata describes the classifier in a checkpoint header.
func (c *Classifier[B]) Metadata() map[string]string {
	return map[string]string{
		"format":        "born",
		"model_type":    "Sequential",
		"task":          "two-moons",
		"neurons":       strconv.Itoa(c.cfg.Neurons),
		"activation":    c.cfg.Activation.String(),
		"learning_rate": strconv.FormatFloat(c.cfg.LearningRate, 'g', -1, 64),
	}
}

// Save writes the parameters to path in SafeTensors layout:
//
//	[8 bytes: header size, uint64 little-endian]
//	[header: JSON, tensor name → TensorHeader plus __metadata__]
//	[data: float32 little-endian, tensors in alphabetical order]
func (c *Classifier[B]) Save(path string) (err error) {
	params := c.namedParameters()

	header := make(map[string]any, len(params)+1)
	header[MetadataKey] = c.Metadata()
	var offset int64
	for _, np := range params {
		t := np.param.Tensor()
		shape := make([]int64, len(t.Shape()))
		for i, d := range t.Shape() {
			shape[i] = int64(d)
		}
		size := int64(len(t.Data()) * 4)
		header[np.name] = TensorHeader{
			DType:       "F32",
			Shape:       shape,
			DataOffsets: [2]int64{offset, offset + size},
		}
		offset += size
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("model: save %s: marshal header: %w", path, err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("model: save: %w", err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("model: save %s: %w", path, cerr)
		}
	}()

	w := bufio.NewWriter(file)
	if err := binary.Write(w, binary.LittleEndian, uint64(len(headerJSON))); err != nil {
		return fmt.Errorf("model: save %s: write header size: %w", path, err)
	}
	if _, err := w.Write(headerJSON); err != nil {
		return fmt.Errorf("model: save %s: write header: %w", path, err)
	}
	for _, np := range params {
		if err := binary.Write(w, binary.LittleEndian, np.param.Tensor().Data()); err != nil {
			return fmt.Errorf("model: save %s: write %s: %w", path, np.name, err)
		}
	}
	return w.Flush()
}
