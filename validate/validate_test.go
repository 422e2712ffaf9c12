package validate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/biscuitwizard/vcscore/dump"
	"github.com/biscuitwizard/vcscore/vcserr"
)

func TestNameRejectsEmpty(t *testing.T) {
	err := Name("name", "")
	require.Error(t, err)
	require.True(t, vcserr.Of(err, vcserr.KindMalformedDump))
}

func TestNameRejectsTooLong(t *testing.T) {
	err := Name("name", strings.Repeat("a", MaxNameLength+1))
	require.Error(t, err)
	require.True(t, vcserr.Of(err, vcserr.KindMalformedDump))
}

func TestNameRejectsNonPrintable(t *testing.T) {
	err := Name("name", "abc\x00def")
	require.Error(t, err)
	require.True(t, vcserr.Of(err, vcserr.KindMalformedDump))
}

func TestNameAcceptsOrdinary(t *testing.T) {
	require.NoError(t, Name("name", "my-object-42"))
}

func TestRefKeyRejectsUnknownType(t *testing.T) {
	err := RefKey(dump.ObjectType("Bogus"), "a")
	require.Error(t, err)
	require.True(t, vcserr.Of(err, vcserr.KindMalformedDump))
}

func TestRefKeyAcceptsKnownType(t *testing.T) {
	require.NoError(t, RefKey(dump.TypeObject, "a"))
	require.NoError(t, RefKey(dump.TypeMetaObject, "a"))
}
