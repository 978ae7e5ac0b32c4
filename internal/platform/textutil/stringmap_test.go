package textutil

import (
	"reflect"
	"testing"
)

func TestNormalizeStringMap(t *testing.T) {
	t.Run("trims keys and values", func(t *testing.T) {
		input := map[string]string{
			" gift_note ": " Happy housewarming ",
			"source":      " mobile_app ",
			"empty":       " ",
			" ":           "dropped",
			"":            "dropped",
		}

		expected := map[string]string{
			"gift_note": "Happy housewarming",
			"source":    "mobile_app",
			"empty":     "",
		}

		if actual := NormalizeStringMap(input); !reflect.DeepEqual(actual, expected) {
			t.Fatalf("expected %#v got %#v", expected, actual)
		}
	})

	t.Run("returns nil when nothing survives", func(t *testing.T) {
		if NormalizeStringMap(nil) != nil {
			t.Fatalf("expected nil for nil input")
		}
		if NormalizeStringMap(map[string]string{" ": "x"}) != nil {
			t.Fatalf("expected nil when every key is blank")
		}
	})
}

func TestFoldCases(t *testing.T) {
	if got := FoldUpper("  welcome10 "); got != "WELCOME10" {
		t.Fatalf("FoldUpper = %q", got)
	}
	if got := FoldLower(" Buyer@Example.COM "); got != "buyer@example.com" {
		t.Fatalf("FoldLower = %q", got)
	}
}
