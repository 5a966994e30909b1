package report

import (
	"bytes"
	"encoding/json"
	"fmt"

	"cypherify/internal/store"
)

// previewRunes bounds the input kept in a history record.
const previewRunes = 64

var storeKinds = map[Kind]store.Kind{
	KindClassification: store.KindClassify,
	KindTransform:      store.KindTransform,
	KindPassword:       store.KindPassword,
	KindPIN:            store.KindPIN,
}

// Record converts the document into a history record. Password and PIN
// documents never carry their input: the record has neither preview nor
// input digest, and the estimate itself holds only the policy.
func (d *Document) Record(input string) (*store.Record, error) {
	kind, ok := storeKinds[d.Kind]
	if !ok {
		return nil, fmt.Errorf("report: no history kind for %q", d.Kind)
	}
	data, err := d.Marshal()
	if err != nil {
		return nil, err
	}
	compact, err := compactJSON(data)
	if err != nil {
		return nil, err
	}

	r := &store.Record{Kind: kind, Result: compact}
	switch d.Kind {
	case KindClassification:
		res := d.Classification
		top := res.Top()
		r.RequestID = res.RequestID
		r.Family = top.Family.String()
		r.Key = top.KeyText
		r.Confidence = top.Confidence
		r.Classified = res.Classified()
	case KindTransform:
		r.Family = d.Transform.Family.String()
		r.Key = d.Transform.Key
	case KindPassword, KindPIN:
		return r, nil
	}
	r.Preview = Truncate(input, previewRunes)
	r.InputDigest = store.InputDigest(kind, input)
	return r, nil
}

func compactJSON(data []byte) (json.RawMessage, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return nil, fmt.Errorf("report: compact: %w", err)
	}
	return buf.Bytes(), nil
}
