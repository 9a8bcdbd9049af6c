package check

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	sv "github.com/jisantuc/stac-api-validator"
	"github.com/jisantuc/stac-api-validator/conformance"
	"github.com/jisantuc/stac-api-validator/stac"
)

const CheckTransactionLifecycle = "transaction.lifecycle"

// TransactionLifecycle asserts the transaction class with a full item
// lifecycle: create an item with a fresh id, read it back, then delete it.
// Cleanup is attempted on every exit path; when it fails the created id is
// carried in the finding context so an operator can remove it by hand.
func TransactionLifecycle() Check {
	return New(CheckTransactionLifecycle, conformance.Transaction, runTransactionLifecycle)
}

func runTransactionLifecycle(ctx context.Context, cctx *Context) (findings []sv.Finding) {
	collections, err := collectionIDs(ctx, cctx)
	if err != nil {
		return []sv.Finding{cctx.finding(sv.SeverityFail, RuleTxnCreate, CheckTransactionLifecycle).
			Message("listing collections for the transaction scenario failed: " + err.Error()).
			Build()}
	}
	if len(collections) == 0 {
		return []sv.Finding{cctx.finding(sv.SeverityWarn, RuleTxnCreate, CheckTransactionLifecycle).
			Message("catalog advertises no collections; transaction scenario not attempted").
			Build()}
	}
	collection := collections[0]

	itemID := uuid.NewString()
	item := transactionItem(itemID, collection)
	body, err := json.Marshal(item)
	if err != nil {
		return []sv.Finding{cctx.finding(sv.SeverityFail, RuleTxnCreate, CheckTransactionLifecycle).
			Message("encoding the transaction item: " + err.Error()).
			Build()}
	}

	collectionsHref, _ := cctx.collectionsURL()
	itemsURL := collectionsHref + "/" + collection + "/items"
	itemURL := itemsURL + "/" + itemID

	resp, err := cctx.Client.PostJSON(ctx, itemsURL, body)
	if err != nil {
		return []sv.Finding{cctx.finding(sv.SeverityFail, RuleTxnCreate, CheckTransactionLifecycle).
			Message("creating the transaction item failed: "+err.Error()).
			With("url", itemsURL).
			Build()}
	}
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return []sv.Finding{cctx.finding(sv.SeverityFail, RuleTxnCreate, CheckTransactionLifecycle).
			Message("creating the transaction item returned status "+strconv.Itoa(resp.StatusCode)+", want 201").
			With("url", itemsURL).
			With("status", strconv.Itoa(resp.StatusCode)).
			Build()}
	}

	findings = []sv.Finding{cctx.finding(sv.SeverityPass, RuleTxnCreate, CheckTransactionLifecycle).
		Message("item " + quote(itemID) + " created in collection " + quote(collection)).
		Build()}

	// The item now exists on the deployment. Deletion is deferred so the
	// release runs even if the read-back panics out of this function.
	defer func() {
		findings = append(findings, transactionCleanup(ctx, cctx, itemURL, itemID)...)
	}()

	findings = append(findings, transactionReadBack(ctx, cctx, itemURL, itemID)...)
	return findings
}

func transactionReadBack(ctx context.Context, cctx *Context, itemURL, itemID string) []sv.Finding {
	resp, failure := cctx.get(ctx, CheckTransactionLifecycle, RuleTxnRead, itemURL, nil, stac.MediaTypeGeoJSON)
	if failure != nil {
		return []sv.Finding{*failure}
	}
	if f := cctx.expectStatus(CheckTransactionLifecycle, RuleTxnRead, resp, http.StatusOK, "reading back the created item"); f != nil {
		return []sv.Finding{*f}
	}
	doc, err := resp.Document()
	if err != nil {
		return []sv.Finding{cctx.finding(sv.SeverityFail, RuleTxnRead, CheckTransactionLifecycle).
			Message("created item did not read back as a STAC document: "+err.Error()).
			With("url", itemURL).
			Build()}
	}
	if doc.ID() != itemID {
		return []sv.Finding{cctx.finding(sv.SeverityFail, RuleTxnRead, CheckTransactionLifecycle).
			Message("created item read back with id "+quote(doc.ID())+", want "+quote(itemID)).
			With("url", itemURL).
			Build()}
	}
	return []sv.Finding{cctx.finding(sv.SeverityPass, RuleTxnRead, CheckTransactionLifecycle).
		Message("created item reads back with its own id").
		Build()}
}

func transactionCleanup(ctx context.Context, cctx *Context, itemURL, itemID string) []sv.Finding {
	resp, err := cctx.Client.Delete(ctx, itemURL)
	if err != nil {
		return []sv.Finding{cctx.finding(sv.SeverityFail, RuleTxnDelete, CheckTransactionLifecycle).
			Message("deleting the created item failed: "+err.Error()+"; remove it by hand").
			With("url", itemURL).
			With("item", itemID).
			Build()}
	}
	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return []sv.Finding{cctx.finding(sv.SeverityFail, RuleTxnDelete, CheckTransactionLifecycle).
			Message("deleting the created item returned status "+strconv.Itoa(resp.StatusCode)+", want 204; remove it by hand").
			With("url", itemURL).
			With("item", itemID).
			With("status", strconv.Itoa(resp.StatusCode)).
			Build()}
	}
	return []sv.Finding{cctx.finding(sv.SeverityPass, RuleTxnDelete, CheckTransactionLifecycle).
		Message("created item deleted with status " + strconv.Itoa(resp.StatusCode)).
		Build()}
}

// transactionItem builds a minimal valid item for the lifecycle probe.
func transactionItem(id, collection string) map[string]any {
	return map[string]any{
		"type":         "Feature",
		"stac_version": "1.0.0",
		"id":           id,
		"collection":   collection,
		"geometry": map[string]any{
			"type":        "Point",
			"coordinates": []float64{0, 0},
		},
		"bbox": []float64{0, 0, 0, 0},
		"properties": map[string]any{
			"datetime": "2000-01-01T00:00:00Z",
		},
		"links":  []any{},
		"assets": map[string]any{},
	}
}
