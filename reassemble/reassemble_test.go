package reassemble_test

import (
	"testing"

	"github.com/mjpearson/dicomul/pdu"
	"github.com/mjpearson/dicomul/reassemble"
	"github.com/mjpearson/dicomul/ulerr"
	"github.com/stretchr/testify/require"
)

func pdv(contextID byte, valueType pdu.PDataValueType, last bool, data []byte) *pdu.PDataContainer {
	return &pdu.PDataContainer{Values: []pdu.PDataValue{
		{PresentationContextID: contextID, ValueType: valueType, IsLast: last, Data: data},
	}}
}

func TestFeedAcrossThreeFragments(t *testing.T) {
	var a reassemble.Assembler
	msg, err := a.Feed(pdv(3, pdu.PDataValueTypeCommand, false, []byte("A")), nil)
	require.NoError(t, err)
	require.Nil(t, msg)

	msg, err = a.Feed(pdv(3, pdu.PDataValueTypeCommand, false, []byte("B")), nil)
	require.NoError(t, err)
	require.Nil(t, msg)

	msg, err = a.Feed(pdv(3, pdu.PDataValueTypeCommand, true, []byte("C")), nil)
	require.NoError(t, err)
	require.NotNil(t, msg)
	require.Equal(t, "ABC", string(msg.Data))
	require.EqualValues(t, 3, msg.PresentationContextID)
	require.Equal(t, pdu.PDataValueTypeCommand, msg.ValueType)
}

func TestMixedValueTypeIsInvalid(t *testing.T) {
	var a reassemble.Assembler
	_, err := a.Feed(pdv(3, pdu.PDataValueTypeCommand, false, []byte("A")), nil)
	require.NoError(t, err)

	_, err = a.Feed(pdv(3, pdu.PDataValueTypeData, true, []byte("B")), nil)
	require.Error(t, err)
	require.True(t, ulerr.Is(err, ulerr.KindInvalidPData))
}

func TestMixedContextIsInvalid(t *testing.T) {
	var a reassemble.Assembler
	_, err := a.Feed(pdv(3, pdu.PDataValueTypeCommand, false, []byte("A")), nil)
	require.NoError(t, err)

	_, err = a.Feed(pdv(5, pdu.PDataValueTypeCommand, true, []byte("B")), nil)
	require.Error(t, err)
	require.True(t, ulerr.Is(err, ulerr.KindInvalidPData))
}

func TestPDVAfterIsLastIsInvalid(t *testing.T) {
	var a reassemble.Assembler
	_, err := a.Feed(pdv(3, pdu.PDataValueTypeCommand, true, []byte("A")), nil)
	require.NoError(t, err)

	_, err = a.Feed(pdv(3, pdu.PDataValueTypeCommand, false, []byte("B")), nil)
	require.Error(t, err)
	require.True(t, ulerr.Is(err, ulerr.KindInvalidPData))
}

func TestUnexpectedPdvType(t *testing.T) {
	var a reassemble.Assembler
	want := &reassemble.ExpectedType{Type: pdu.PDataValueTypeCommand}
	_, err := a.Feed(pdv(3, pdu.PDataValueTypeData, true, []byte("A")), want)
	require.Error(t, err)
	require.True(t, ulerr.Is(err, ulerr.KindUnexpectedPdvType))
}

func TestIncompleteOnCloseOnlyAfterStart(t *testing.T) {
	var a reassemble.Assembler
	require.NoError(t, a.IncompleteOnClose())

	_, err := a.Feed(pdv(3, pdu.PDataValueTypeCommand, false, []byte("A")), nil)
	require.NoError(t, err)
	require.Error(t, a.IncompleteOnClose())
}

func TestSplitPDVsMarksOnlyLastFragment(t *testing.T) {
	data := []byte("0123456789")
	values := reassemble.SplitPDVs(1, pdu.PDataValueTypeCommand, data, 4)
	require.Len(t, values, 3)
	require.False(t, values[0].IsLast)
	require.False(t, values[1].IsLast)
	require.True(t, values[2].IsLast)
	var got []byte
	for _, v := range values {
		got = append(got, v.Data...)
	}
	require.Equal(t, data, got)
}
