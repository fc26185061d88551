package normalize

import "testing"

func TestTitleIdempotent(t *testing.T) {
	cases := []string{
		"Attention Is All You Need",
		"Quantum Pineapple Theorems in Category-11 Spaces",
		"A Study of α-Divergence &amp; β-Shrinkage",
		"",
		"   multiple   spaces   ",
	}
	for _, c := range cases {
		once := Title(c)
		twice := Title(once)
		if once != twice {
			t.Errorf("Title not idempotent for %q: %q != %q", c, once, twice)
		}
	}
}

func TestTitleDecodesEntitiesAndGreek(t *testing.T) {
	got := Title("Na&iuml;ve &alpha;-Bayes Classifiers")
	if got != "naive alpha bayes classifiers" {
		t.Errorf("got %q", got)
	}
}

func TestTitleStripsDiacritics(t *testing.T) {
	got := Title("Étude sur la Théorie Générale")
	if got != "etude sur la theorie generale" {
		t.Errorf("got %q", got)
	}
}

func TestTitleCollapsesPunctuationAndWhitespace(t *testing.T) {
	got := Title("Deep  Learning: A  Survey!!  (2019)")
	if got != "deep learning a survey 2019" {
		t.Errorf("got %q", got)
	}
}

func TestTitlesMatchReflexive(t *testing.T) {
	titles := []string{
		"Attention Is All You Need",
		"BERT: Pre-training of Deep Bidirectional Transformers",
		"",
	}
	for _, title := range titles {
		if !TitlesMatch(title, title) {
			t.Errorf("TitlesMatch(%q, %q) should be reflexive", title, title)
		}
	}
}

func TestTitlesMatchSymmetric(t *testing.T) {
	pairs := [][2]string{
		{"Attention Is All You Need", "attention is all you need"},
		{"A Survey of Deep Learning Methods for Natural Language Understanding",
			"A Survey of Deep Learning Methods"},
		{"Completely Different Title About Gardening", "Attention Is All You Need"},
	}
	for _, p := range pairs {
		if TitlesMatch(p[0], p[1]) != TitlesMatch(p[1], p[0]) {
			t.Errorf("TitlesMatch not symmetric for %q, %q", p[0], p[1])
		}
	}
}

func TestTitlesMatchExact(t *testing.T) {
	if !TitlesMatch("Attention Is All You Need", "ATTENTION IS ALL YOU NEED!") {
		t.Error("expected exact normalized match to succeed")
	}
}

func TestTitlesMatchSubtitleElision(t *testing.T) {
	full := "A Survey of Deep Learning Methods: Applications in Vision and Language"
	short := "A Survey of Deep Learning Methods"
	if !TitlesMatch(full, short) {
		t.Error("expected subtitle-elided prefix to match")
	}
}

func TestTitlesMatchRejectsShortPrefix(t *testing.T) {
	if TitlesMatch("The Theory", "The Theory of Computation") {
		t.Error("prefix shorter than 10 alphanumeric characters should not match")
	}
}

func TestTitlesMatchRejectsUnrelated(t *testing.T) {
	if TitlesMatch("Quantum Pineapple Theorems in Category-11 Spaces", "Attention Is All You Need") {
		t.Error("unrelated titles should not match")
	}
}
