package finance

import "testing"

func TestGuessTicker(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"TSLA", "TSLA"},
		{"Analyze MSFT please", "MSFT"},
		{"ACME CORP", "ACME"},
		{"Tesla", ""},         // 无全大写候选
		{"A big company", ""}, // 单字母不算
	}
	for _, c := range cases {
		if got := GuessTicker(c.in); got != c.want {
			t.Errorf("GuessTicker(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestExtractTicker(t *testing.T) {
	// 全文先转大写，首个匹配即候选
	if got := ExtractTicker("Tesla (TSLA) Stock Price"); got != "TESLA" {
		t.Errorf("ExtractTicker = %q, want TESLA", got)
	}
	if got := ExtractTicker("nothing here 123"); got != "" {
		t.Errorf("ExtractTicker = %q, want empty", got)
	}
}
