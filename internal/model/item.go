package model

// Item is one evaluation sample: a question, the context it was asked
// against, the answer under evaluation, and any other fields the dataset
// carries. The batch scorer treats it as opaque — fields pass through to the
// result untouched.
type Item map[string]any

// Conventional keys rendered into the judge prompt.
const (
	KeyQuestion = "question"
	KeyContext  = "context"
	KeyAnswer   = "answer"
)

// GetString returns the string value for key, or "" when the key is absent
// or holds a non-string.
func (it Item) GetString(key string) string {
	if v, ok := it[key].(string); ok {
		return v
	}
	return ""
}

// Question returns the sample's question text.
func (it Item) Question() string { return it.GetString(KeyQuestion) }

// Context returns the sample's context text.
func (it Item) Context() string { return it.GetString(KeyContext) }

// Answer returns the answer under evaluation.
func (it Item) Answer() string { return it.GetString(KeyAnswer) }

// Clone returns a shallow copy of the item.
func (it Item) Clone() Item {
	out := make(Item, len(it))
	for k, v := range it {
		out[k] = v
	}
	return out
}

// Merge returns a new Item holding every field of the receiver plus every
// entry of fields. On key collision the incoming field wins, so a judge
// verdict always overwrites a stale dataset column of the same name. Neither
// input is mutated.
func (it Item) Merge(fields map[string]any) Item {
	out := make(Item, len(it)+len(fields))
	for k, v := range it {
		out[k] = v
	}
	for k, v := range fields {
		out[k] = v
	}
	return out
}
