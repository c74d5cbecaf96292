package pattern

import (
	"strings"
	"testing"

	"codereviewsvc/internal/analyzer/lang"
)

func TestWhileTrueWithoutBreakIsInfiniteLoop(t *testing.T) {
	src := `function poll() {
  while (true) {
    doWork();
  }
}`
	issues := New().Detect([]byte(src), "poll.js", lang.JavaScript)
	found := false
	for _, i := range issues {
		if i.RuleID == "infinite-loop" {
			found = true
			if i.Line != 2 {
				t.Errorf("expected infinite-loop at line 2, got %d", i.Line)
			}
		}
	}
	if !found {
		t.Fatal("expected an infinite-loop issue")
	}
}

func TestWhileTrueWithBreakIsNotFlagged(t *testing.T) {
	src := `function poll() {
  while (true) {
    if (done()) {
      break;
    }
  }
}`
	issues := New().Detect([]byte(src), "poll.js", lang.JavaScript)
	for _, i := range issues {
		if i.RuleID == "infinite-loop" {
			t.Fatalf("did not expect infinite-loop issue, got one at line %d", i.Line)
		}
	}
}

func TestRegexInNestedLoopFiresOnceAtRegexLine(t *testing.T) {
	src := `function scan(items) {
  for (let i = 0; i < items.length; i++) {
    while (hasMore(i)) {
      const pattern = new RegExp(items[i]);
      pattern.test(items[i]);
    }
  }
}`
	lines := strings.Split(src, "\n")
	issues := New().Detect([]byte(src), "scan.js", lang.JavaScript)

	count := 0
	for _, i := range issues {
		if i.RuleID == "regex-construction-in-loop" {
			count++
			if i.Line != 4 {
				t.Errorf("expected regex-construction-in-loop at line 4, got %d", i.Line)
			}
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one regex-construction-in-loop issue, got %d (lines: %v)", count, lines)
	}
}

func TestCommandInjectionDetected(t *testing.T) {
	src := "exec(`rm -rf ${userInput}`);"
	issues := New().Detect([]byte(src), "run.js", lang.JavaScript)
	if len(issues) == 0 {
		t.Fatal("expected command-injection issue")
	}
	if issues[0].RuleID != "command-injection" {
		t.Errorf("expected command-injection, got %s", issues[0].RuleID)
	}
}

func TestStringConcatOutsideLoopNotFlagged(t *testing.T) {
	src := `let msg = "hello";
msg += " world";`
	issues := New().Detect([]byte(src), "greet.js", lang.JavaScript)
	for _, i := range issues {
		if i.RuleID == "string-concat-in-loop" {
			t.Fatal("did not expect string-concat-in-loop outside a loop")
		}
	}
}
