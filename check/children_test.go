package check

import (
	"context"
	"testing"

	sv "github.com/jisantuc/stac-api-validator"
)

func TestChildrenListConformant(t *testing.T) {
	f := newFakeAPI(t, allConformsTo()...)
	cctx := newContext(t, f, childrenURI)

	findings := ChildrenList().Run(context.Background(), cctx)
	requireNoFailures(t, findings)

	if found, ok := findRule(findings, RuleChildrenEndpoint); !ok || found.Severity != sv.SeverityPass {
		t.Errorf("children endpoint should pass: %v", findings)
	}
}

func TestChildrenListBadEntryType(t *testing.T) {
	f := newFakeAPI(t, allConformsTo()...)
	f.childrenBadType = true
	cctx := newContext(t, f, childrenURI)

	findings := ChildrenList().Run(context.Background(), cctx)
	found, ok := findRule(findings, RuleChildrenEndpoint)
	if !ok {
		t.Fatalf("no finding for rule %s: %v", RuleChildrenEndpoint, findings)
	}
	if found.Severity != sv.SeverityFail {
		t.Errorf("severity %s, want FAIL: %s", found.Severity, found)
	}
}

func TestBrowseableTraverseConformant(t *testing.T) {
	f := newFakeAPI(t, allConformsTo()...)
	cctx := newContext(t, f, browseableURI)

	findings := BrowseableTraverse().Run(context.Background(), cctx)
	if len(findings) != 1 {
		t.Fatalf("got %d findings, want 1: %v", len(findings), findings)
	}
	if findings[0].Severity != sv.SeverityPass || findings[0].RuleID != RuleBrowseableLinks {
		t.Errorf("unexpected finding: %s", findings[0])
	}
}

func TestBrowseableTraverseNoChildLinks(t *testing.T) {
	f := newFakeAPI(t, allConformsTo()...)
	f.dropChildLink = true
	cctx := newContext(t, f, browseableURI)

	findings := BrowseableTraverse().Run(context.Background(), cctx)
	if len(findings) != 1 {
		t.Fatalf("got %d findings, want 1: %v", len(findings), findings)
	}
	if findings[0].Severity != sv.SeverityFail {
		t.Errorf("severity %s, want FAIL: %s", findings[0].Severity, findings[0])
	}
}
