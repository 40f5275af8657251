package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mmitss/intersection/internal/fanout"
)

func TestSavariTypeForKnownChannels(t *testing.T) {
	cases := []struct {
		id   fanout.MsgID
		want uint8
	}{
		{fanout.MsgBSM, 1},
		{fanout.MsgSRM, 2},
		{fanout.MsgMAP, 3},
		{fanout.MsgSPAT, 4},
		{fanout.MsgSSM, 5},
	}
	for _, c := range cases {
		got, ok := savariTypeFor(c.id)
		assert.True(t, ok)
		assert.Equal(t, c.want, got)
	}
}

func TestSavariTypeForRejectsNonRadioChannels(t *testing.T) {
	_, ok := savariTypeFor(fanout.MsgSoftcall)
	assert.False(t, ok)
	_, ok = savariTypeFor(fanout.MsgCntrlStatus)
	assert.False(t, ok)
}
