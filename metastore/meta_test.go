package metastore

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/biscuitwizard/vcscore/dump"
)

func TestFilterRoundTrip(t *testing.T) {
	doc := AddIgnoredVerb(Doc{}, "debug")

	d := dump.Dump{
		Name:  "obj",
		Verbs: []dump.Verb{{Name: "debug", Code: "x"}, {Name: "look", Code: "y"}},
	}
	filtered := Filter(d, doc)
	require.Len(t, filtered.Verbs, 1)
	require.Equal(t, "look", filtered.Verbs[0].Name)
}

func TestFilterIdempotent(t *testing.T) {
	doc := Doc{IgnoredProperties: []string{"p"}}
	d := dump.Dump{Properties: []dump.Property{{Name: "p", Value: "1"}, {Name: "q", Value: "2"}}}
	once := Filter(d, doc)
	twice := Filter(once, doc)
	require.Equal(t, once, twice)
}

func TestAddRemoveClear(t *testing.T) {
	doc := Doc{}
	doc = AddIgnoredProperty(doc, "p1")
	doc = AddIgnoredProperty(doc, "p2")
	require.ElementsMatch(t, []string{"p1", "p2"}, doc.IgnoredProperties)

	doc = RemoveIgnoredProperty(doc, "p1")
	require.Equal(t, []string{"p2"}, doc.IgnoredProperties)

	doc = Clear(doc)
	require.Empty(t, doc.IgnoredProperties)
	require.Empty(t, doc.IgnoredVerbs)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	doc := AddIgnoredVerb(AddIgnoredProperty(Doc{}, "p1"), "look")
	raw, err := Encode(doc)
	require.NoError(t, err)

	decoded, err := Decode(raw)
	require.NoError(t, err)
	require.Equal(t, doc, decoded)
}

func TestDecodeEmptyIsZeroDoc(t *testing.T) {
	doc, err := Decode(nil)
	require.NoError(t, err)
	require.Empty(t, doc.IgnoredProperties)
	require.Empty(t, doc.IgnoredVerbs)
}
