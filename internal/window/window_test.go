package window

import "testing"

func TestCalcMode(t *testing.T) {
	tests := []struct {
		name string
		w    Managed
		want Mode
	}{
		{
			name: "opaque visual",
			w:    Managed{Opacity: 1},
			want: ModeSolid,
		},
		{
			name: "opacity property below one",
			w:    Managed{Opacity: 0.5},
			want: ModeTrans,
		},
		{
			name: "argb without a client",
			w:    Managed{Opacity: 1, HasAlpha: true},
			want: ModeTrans,
		},
		{
			name: "argb frame over an argb client",
			w:    Managed{Opacity: 1, HasAlpha: true, ClientWin: 2, ClientHasAlpha: true},
			want: ModeTrans,
		},
		{
			name: "argb frame over an opaque client",
			w: Managed{Opacity: 1, HasAlpha: true, ClientWin: 2,
				FrameExtents: Margins{Top: 20}},
			want: ModeFrameTrans,
		},
		{
			name: "argb frame with zero margins",
			w:    Managed{Opacity: 1, HasAlpha: true, ClientWin: 2},
			want: ModeSolid,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.w.CalcMode(); got != tt.want {
				t.Errorf("CalcMode() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestKindFromTypes(t *testing.T) {
	tests := []struct {
		name             string
		types            []string
		transient, oride bool
		want             Kind
	}{
		{"explicit dialog", []string{"_NET_WM_WINDOW_TYPE_DIALOG"}, false, false, KindDialog},
		{"first recognized wins", []string{"bogus", "_NET_WM_WINDOW_TYPE_DOCK"}, false, false, KindDock},
		{"transient fallback", nil, true, false, KindDialog},
		{"override-redirect fallback", nil, false, true, KindPopup},
		{"plain window", nil, false, false, KindNormal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindFromTypes(tt.types, tt.transient, tt.oride); got != tt.want {
				t.Errorf("KindFromTypes() = %v, want %v", got, tt.want)
			}
		})
	}
}
