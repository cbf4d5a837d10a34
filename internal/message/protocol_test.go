package message

import "testing"

func TestParseInteraction(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Action
	}{
		{
			name: "empty_is_noop",
			raw:  "",
			want: NoOp{},
		},
		{
			name: "blank_is_noop",
			raw:  "   ",
			want: NoOp{},
		},
		{
			name: "plain_dismiss",
			raw:  "inapp://dismiss",
			want: Dismiss{},
		},
		{
			name: "dismiss_with_interaction",
			raw:  "inapp://dismiss?interaction=confirmed",
			want: Dismiss{Interaction: "confirmed"},
		},
		{
			name: "dismiss_with_encoded_link",
			raw:  "inapp://dismiss?interaction=deeplinkclicked&link=https%3A%2F%2Fexample.com",
			want: Dismiss{Interaction: "deeplinkclicked", Link: "https://example.com"},
		},
		{
			name: "link_with_script_directive_is_evaluated_not_navigated",
			raw:  "inapp://dismiss?interaction=clicked&link=js%3DcloseCallback('done')",
			want: Dismiss{Interaction: "clicked", Script: "closeCallback('done')"},
		},
		{
			name: "foreign_scheme_passes_through",
			raw:  "adb_deeplink://checkout/cart",
			want: Passthrough{URL: "adb_deeplink://checkout/cart"},
		},
		{
			name: "spaced_prefix_allows_default",
			raw:  "not a scheme://target",
			want: AllowDefault{},
		},
		{
			name: "https_passes_through",
			raw:  "https://example.com/landing",
			want: Passthrough{URL: "https://example.com/landing"},
		},
		{
			name: "private_scheme_unknown_host_passes_through",
			raw:  "inapp://expand",
			want: Passthrough{URL: "inapp://expand"},
		},
		{
			name: "no_scheme_allows_default",
			raw:  "not a url at all",
			want: AllowDefault{},
		},
		{
			name: "scheme_without_host_allows_default",
			raw:  "inapp://",
			want: AllowDefault{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseInteraction(tt.raw)
			if got != tt.want {
				t.Errorf("ParseInteraction(%q) = %#v, want %#v", tt.raw, got, tt.want)
			}
		})
	}
}
