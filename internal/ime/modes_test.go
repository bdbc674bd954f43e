package ime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModesValidation(t *testing.T) {
	tests := []struct {
		name    string
		lang    Language
		preset  Overlay
		set     Overlay
		wantErr bool
	}{
		{"temp english in chinese", Chinese, 0, TempEnglish, false},
		{"temp english in english", English, 0, TempEnglish, true},
		{"menu in english", English, 0, Menu, true},
		{"full shape in english", English, 0, FullShape, false},
		{"full shape in chinese", Chinese, 0, FullShape, true},
		{"pinyin without homophone", Chinese, 0, HomophoneSelPinyin, true},
		{"pinyin with homophone", Chinese, Homophone, HomophoneSelPinyin, false},
		{"both symbol overlays", Chinese, MenuSymbols, DayiSymbols, true},
		{"menu with symbols", Chinese, 0, Menu | DayiSymbols, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var m Modes
			m.SetLanguage(tc.lang)
			if tc.preset != 0 {
				require.NoError(t, m.Set(tc.preset, true))
			}
			err := m.Set(tc.set, true)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrIllegalMode)
				assert.False(t, m.Any(tc.set&^tc.preset))
			} else {
				assert.NoError(t, err)
				assert.True(t, m.Has(tc.set))
			}
		})
	}
}

func TestModesLanguageSwitchDropsOverlays(t *testing.T) {
	var m Modes
	require.NoError(t, m.Set(TempEnglish|Phrase, true))

	m.SetLanguage(English)
	assert.Equal(t, Overlay(0), m.Overlays())
	require.NoError(t, m.Set(FullShape, true))

	m.SetLanguage(Chinese)
	assert.False(t, m.Has(FullShape))
}

func TestModesClearHomophoneClearsPinyin(t *testing.T) {
	var m Modes
	require.NoError(t, m.Set(Homophone, true))
	require.NoError(t, m.Set(HomophoneSelPinyin, true))

	require.NoError(t, m.Set(Homophone, false))
	assert.False(t, m.Any(Homophone|HomophoneSelPinyin))
}

func TestModesString(t *testing.T) {
	var m Modes
	m.SetStrategy(BufferCommit)
	require.NoError(t, m.Set(Menu|MenuSymbols, true))
	assert.Equal(t, "chinese/buffer/menu|menu-symbols", m.String())
}
