//go:build js && wasm

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"syscall/js"
	"time"

	"github.com/kittclouds/roleforge/internal/app"
	"github.com/kittclouds/roleforge/internal/bridge"
	"github.com/kittclouds/roleforge/internal/config"
	apperrors "github.com/kittclouds/roleforge/internal/errors"
	"github.com/kittclouds/roleforge/internal/store"
	"github.com/kittclouds/roleforge/pkg/analytics"
	"github.com/kittclouds/roleforge/pkg/backup"
	"github.com/kittclouds/roleforge/pkg/roster"
	"github.com/kittclouds/roleforge/pkg/search"
)

// Version info
const Version = "1.0.0"

// Global state
var svc *app.App

func main() {
	fmt.Println("[RoleForge] WASM Ready v" + Version)

	js.Global().Set("RoleForge", js.ValueOf(map[string]interface{}{
		"version":    js.FuncOf(getVersion),
		"initialize": js.FuncOf(initialize),
		// Characters
		"addCharacter":       js.FuncOf(addCharacter),
		"updateCharacter":    js.FuncOf(updateCharacter),
		"deleteCharacter":    js.FuncOf(deleteCharacter),
		"toggleFavorite":     js.FuncOf(toggleFavorite),
		"getCharacter":       js.FuncOf(getCharacter),
		"listCharacters":     js.FuncOf(listCharacters),
		"setActiveCharacter": js.FuncOf(setActiveCharacter),
		"getActiveCharacter": js.FuncOf(getActiveCharacter),
		"templates":          js.FuncOf(templates),
		"templateCategories": js.FuncOf(templateCategories),
		"addFromTemplate":    js.FuncOf(addFromTemplate),
		// Conversations
		"sendMessage":       js.FuncOf(sendMessage), // Promise
		"getMessages":       js.FuncOf(getMessages),
		"clearConversation": js.FuncOf(clearConversation),
		"startConversation": js.FuncOf(startConversation),
		// Search & Analytics
		"searchMessages":    js.FuncOf(searchMessages),
		"globalSearch":      js.FuncOf(globalSearch),
		"listConversations": js.FuncOf(listConversations),
		"listFavorites":     js.FuncOf(listFavorites),
		"analytics":         js.FuncOf(computeAnalytics),
		"timeline":          js.FuncOf(timeline),
		// Serialization
		"exportData":        js.FuncOf(exportData),
		"importData":        js.FuncOf(importData),
		"exportCSV":         js.FuncOf(exportCSV),
		"exportMarkdown":    js.FuncOf(exportMarkdown),
		"exportFileName":    js.FuncOf(exportFileName),
		"dataSize":          js.FuncOf(dataSize),
		"createAutoBackup":  js.FuncOf(createAutoBackup),
		"restoreAutoBackup": js.FuncOf(restoreAutoBackup),
		"lastAutoBackup":    js.FuncOf(lastAutoBackup),
		"resetData":         js.FuncOf(resetData),
	}))

	// Keep alive
	select {}
}

func getVersion(this js.Value, args []js.Value) interface{} {
	return Version
}

// initialize builds the services. Optional arg: settings JSON
// {"storage":"localStorage|memory|sqlite","dsn":"...","quota":0,
// "seed":0,"replyDelayMs":0,"replyTimeoutMs":0}
func initialize(this js.Value, args []js.Value) interface{} {
	if svc != nil {
		svc.Close()
		svc = nil
	}

	cfg, err := config.Load()
	if err != nil {
		return bridge.ErrorResult(err.Error())
	}

	var settings struct {
		Storage        string `json:"storage"`
		DSN            string `json:"dsn"`
		Quota          int    `json:"quota"`
		Seed           uint64 `json:"seed"`
		ReplyDelayMs   int    `json:"replyDelayMs"`
		ReplyTimeoutMs int    `json:"replyTimeoutMs"`
	}
	if len(args) > 0 && !args[0].IsUndefined() && !args[0].IsNull() {
		if err := json.Unmarshal([]byte(args[0].String()), &settings); err != nil {
			return bridge.ErrorResult("invalid settings: " + err.Error())
		}
	}
	if settings.Seed != 0 {
		cfg.Reply.Seed = settings.Seed
	}
	if settings.ReplyDelayMs > 0 {
		cfg.Reply.Delay = time.Duration(settings.ReplyDelayMs) * time.Millisecond
	}
	if settings.ReplyTimeoutMs > 0 {
		cfg.Reply.Timeout = time.Duration(settings.ReplyTimeoutMs) * time.Millisecond
	}
	if settings.Quota > 0 {
		cfg.StorageQuota = settings.Quota
	}

	var s store.Storer
	switch settings.Storage {
	case "", "localStorage":
		ls, err := store.NewLocalStorage()
		if err != nil {
			fmt.Println("[RoleForge] ⚠️ localStorage unavailable, using memory:", err.Error())
			s = store.NewMemoryStoreWithQuota(cfg.StorageQuota)
		} else {
			s = ls
		}
	case "memory":
		s = store.NewMemoryStoreWithQuota(cfg.StorageQuota)
	case "sqlite":
		if settings.DSN != "" {
			cfg.DSN = settings.DSN
		}
		s, err = app.OpenStore(cfg)
		if err != nil {
			return bridge.ErrorResult(err.Error())
		}
	default:
		return bridge.ErrorResult("unknown storage: " + settings.Storage)
	}

	svc, err = app.New(context.Background(), cfg, app.Deps{Store: s})
	if err != nil {
		return bridge.CodeResult(err)
	}
	fmt.Printf("[RoleForge] ✅ Loaded %d characters\n", svc.Roster.Len())
	return bridge.SuccessResult("initialized")
}

// =============================================================================
// Characters
// =============================================================================

// addCharacter: [fieldsJSON string]
func addCharacter(this js.Value, args []js.Value) interface{} {
	if res := requireArgs("addCharacter", args, 1); res != nil {
		return res
	}
	var f roster.Fields
	if err := json.Unmarshal([]byte(args[0].String()), &f); err != nil {
		return bridge.ErrorResult("invalid character json: " + err.Error())
	}
	id, err := svc.Roster.AddCharacter(f)
	return bridge.AppliedResult(map[string]interface{}{"id": id}, err)
}

// updateCharacter: [id string, patchJSON string]
func updateCharacter(this js.Value, args []js.Value) interface{} {
	if res := requireArgs("updateCharacter", args, 2); res != nil {
		return res
	}
	var p roster.Patch
	if err := json.Unmarshal([]byte(args[1].String()), &p); err != nil {
		return bridge.ErrorResult("invalid patch json: " + err.Error())
	}
	if err := svc.Roster.UpdateCharacter(args[0].String(), p); err != nil {
		return bridge.CodeResult(err)
	}
	return bridge.SuccessResult("updated")
}

// deleteCharacter: [id string]
func deleteCharacter(this js.Value, args []js.Value) interface{} {
	if res := requireArgs("deleteCharacter", args, 1); res != nil {
		return res
	}
	if err := svc.Roster.DeleteCharacter(args[0].String()); err != nil {
		return bridge.CodeResult(err)
	}
	return bridge.SuccessResult("deleted")
}

// toggleFavorite: [id string]
func toggleFavorite(this js.Value, args []js.Value) interface{} {
	if res := requireArgs("toggleFavorite", args, 1); res != nil {
		return res
	}
	fav, err := svc.Roster.ToggleFavorite(args[0].String())
	if err != nil && !apperrors.IsCode(err, apperrors.CodePersistence) {
		return bridge.CodeResult(err)
	}
	return bridge.AppliedResult(map[string]interface{}{"isFavorite": fav}, err)
}

// getCharacter: [id string]
func getCharacter(this js.Value, args []js.Value) interface{} {
	if res := requireArgs("getCharacter", args, 1); res != nil {
		return res
	}
	c, err := svc.Roster.Get(args[0].String())
	if err != nil {
		return bridge.CodeResult(err)
	}
	return bridge.JSONResult(c)
}

func listCharacters(this js.Value, args []js.Value) interface{} {
	if res := requireArgs("listCharacters", args, 0); res != nil {
		return res
	}
	return bridge.JSONResult(svc.Roster.List())
}

// setActiveCharacter: [id string] ("" clears)
func setActiveCharacter(this js.Value, args []js.Value) interface{} {
	if res := requireArgs("setActiveCharacter", args, 1); res != nil {
		return res
	}
	if err := svc.Roster.SetActiveCharacter(args[0].String()); err != nil {
		return bridge.CodeResult(err)
	}
	return bridge.SuccessResult("active")
}

func getActiveCharacter(this js.Value, args []js.Value) interface{} {
	if res := requireArgs("getActiveCharacter", args, 0); res != nil {
		return res
	}
	return bridge.JSONResult(svc.Roster.ActiveCharacter())
}

// templates: [category string, query string] both optional
func templates(this js.Value, args []js.Value) interface{} {
	var category, query string
	if len(args) > 0 && args[0].Type() == js.TypeString {
		category = args[0].String()
	}
	if len(args) > 1 && args[1].Type() == js.TypeString {
		query = args[1].String()
	}
	found, err := roster.FindTemplates(category, query)
	if err != nil {
		return bridge.CodeResult(err)
	}
	return bridge.JSONResult(found)
}

func templateCategories(this js.Value, args []js.Value) interface{} {
	return bridge.JSONResult(append([]string{roster.AllCategories}, roster.Categories()...))
}

// addFromTemplate: [templateID string]
func addFromTemplate(this js.Value, args []js.Value) interface{} {
	if res := requireArgs("addFromTemplate", args, 1); res != nil {
		return res
	}
	id, err := svc.Roster.AddFromTemplate(args[0].String())
	if id == "" {
		return bridge.CodeResult(err)
	}
	return bridge.AppliedResult(map[string]interface{}{"id": id}, err)
}

// =============================================================================
// Conversations
// =============================================================================

// sendMessage: [text string] -> Promise<exchangeJSON>
// Resolves once a reply was appended, with "error"/"code" added when saving
// failed. Otherwise rejects with an Error whose message is the
// {"error","code"} envelope, carrying the kept user message if any.
func sendMessage(this js.Value, args []js.Value) interface{} {
	if res := requireArgs("sendMessage", args, 1); res != nil {
		return res
	}
	text := args[0].String()

	promise, resolve, reject := makePromise()

	go func() {
		ex, err := svc.Roster.SendMessage(context.Background(), text)
		out, ok := bridge.ExchangeResult(ex, err)
		if !ok {
			reject.Invoke(js.Global().Get("Error").New(out))
			return
		}
		resolve.Invoke(out)
	}()

	return promise
}

// getMessages: [characterID string]
func getMessages(this js.Value, args []js.Value) interface{} {
	if res := requireArgs("getMessages", args, 1); res != nil {
		return res
	}
	msgs, err := svc.Roster.GetMessages(args[0].String())
	if err != nil {
		return bridge.CodeResult(err)
	}
	return bridge.JSONResult(msgs)
}

// clearConversation: [characterID string]
func clearConversation(this js.Value, args []js.Value) interface{} {
	if res := requireArgs("clearConversation", args, 1); res != nil {
		return res
	}
	if err := svc.Roster.ClearConversation(args[0].String()); err != nil {
		return bridge.CodeResult(err)
	}
	return bridge.SuccessResult("cleared")
}

// startConversation: [characterID string]
func startConversation(this js.Value, args []js.Value) interface{} {
	if res := requireArgs("startConversation", args, 1); res != nil {
		return res
	}
	id, err := svc.Roster.StartConversation(args[0].String())
	if id == "" {
		return bridge.CodeResult(err)
	}
	return bridge.AppliedResult(map[string]interface{}{"conversationId": id}, err)
}

// =============================================================================
// Search & Analytics
// =============================================================================

// searchMessages: [characterID string, query string]
func searchMessages(this js.Value, args []js.Value) interface{} {
	if res := requireArgs("searchMessages", args, 2); res != nil {
		return res
	}
	msgs, err := search.Messages(svc.Roster.Snapshot(), args[0].String(), args[1].String())
	if err != nil {
		return bridge.CodeResult(err)
	}
	return bridge.JSONResult(msgs)
}

// globalSearch: [query string]
func globalSearch(this js.Value, args []js.Value) interface{} {
	if res := requireArgs("globalSearch", args, 1); res != nil {
		return res
	}
	results, err := search.Global(svc.Roster.Snapshot(), args[0].String())
	if err != nil {
		return bridge.CodeResult(err)
	}
	return bridge.JSONResult(results)
}

// listConversations: [queryJSON string] {"query","characterId","sort"}
func listConversations(this js.Value, args []js.Value) interface{} {
	if res := requireArgs("listConversations", args, 0); res != nil {
		return res
	}
	var q struct {
		Query       string `json:"query"`
		CharacterID string `json:"characterId"`
		Sort        string `json:"sort"`
	}
	if len(args) > 0 && !args[0].IsUndefined() && !args[0].IsNull() {
		if err := json.Unmarshal([]byte(args[0].String()), &q); err != nil {
			return bridge.ErrorResult("invalid query json: " + err.Error())
		}
	}
	h, err := search.Conversations(svc.Roster.Snapshot(), search.HistoryQuery{
		Query:       q.Query,
		CharacterID: q.CharacterID,
		Sort:        search.HistorySort(q.Sort),
	})
	if err != nil {
		return bridge.CodeResult(err)
	}
	return bridge.JSONResult(h)
}

// listFavorites: [sort string]
func listFavorites(this js.Value, args []js.Value) interface{} {
	if res := requireArgs("listFavorites", args, 0); res != nil {
		return res
	}
	by := search.FavRecent
	if len(args) > 0 && args[0].Type() == js.TypeString {
		by = search.FavoriteSort(args[0].String())
	}
	return bridge.JSONResult(search.Favorites(svc.Roster.Snapshot(), by))
}

type analyticsArgs struct {
	Window   string `json:"window"`
	CustomMs int64  `json:"customMs"`
	TopN     int    `json:"topN"`
}

func (a analyticsArgs) options() analytics.Options {
	return analytics.Options{
		Window: analytics.Window(a.Window),
		Custom: time.Duration(a.CustomMs) * time.Millisecond,
		TopN:   a.TopN,
	}
}

// computeAnalytics: [optionsJSON string] {"window","customMs","topN"}
func computeAnalytics(this js.Value, args []js.Value) interface{} {
	if res := requireArgs("analytics", args, 0); res != nil {
		return res
	}
	var a analyticsArgs
	if len(args) > 0 && !args[0].IsUndefined() && !args[0].IsNull() {
		if err := json.Unmarshal([]byte(args[0].String()), &a); err != nil {
			return bridge.ErrorResult("invalid options json: " + err.Error())
		}
	}
	rep, err := analytics.Compute(svc.Roster.Snapshot(), a.options())
	if err != nil {
		return bridge.CodeResult(err)
	}
	return bridge.JSONResult(rep)
}

// timeline: [intervalMs number, optionsJSON string]
func timeline(this js.Value, args []js.Value) interface{} {
	if res := requireArgs("timeline", args, 1); res != nil {
		return res
	}
	var a analyticsArgs
	if len(args) > 1 && !args[1].IsUndefined() && !args[1].IsNull() {
		if err := json.Unmarshal([]byte(args[1].String()), &a); err != nil {
			return bridge.ErrorResult("invalid options json: " + err.Error())
		}
	}
	interval := time.Duration(args[0].Int()) * time.Millisecond
	buckets, err := analytics.Timeline(svc.Roster.Snapshot(), interval, a.options())
	if err != nil {
		return bridge.CodeResult(err)
	}
	return bridge.JSONResult(buckets)
}

// =============================================================================
// Serialization
// =============================================================================

func exportData(this js.Value, args []js.Value) interface{} {
	if res := requireArgs("exportData", args, 0); res != nil {
		return res
	}
	data, err := svc.Roster.ExportData()
	if err != nil {
		return bridge.CodeResult(err)
	}
	return string(data)
}

// importData: [blob string]
func importData(this js.Value, args []js.Value) interface{} {
	if res := requireArgs("importData", args, 1); res != nil {
		return res
	}
	if err := svc.Roster.ImportData([]byte(args[0].String())); err != nil {
		return bridge.CodeResult(err)
	}
	fmt.Printf("[RoleForge] ✅ Imported %d characters\n", svc.Roster.Len())
	return bridge.SuccessResult("imported")
}

func exportCSV(this js.Value, args []js.Value) interface{} {
	if res := requireArgs("exportCSV", args, 0); res != nil {
		return res
	}
	var buf bytes.Buffer
	if err := backup.WriteCSV(&buf, svc.Roster.Snapshot()); err != nil {
		return bridge.ErrorResult("csv export failed: " + err.Error())
	}
	return buf.String()
}

func exportMarkdown(this js.Value, args []js.Value) interface{} {
	if res := requireArgs("exportMarkdown", args, 0); res != nil {
		return res
	}
	var buf bytes.Buffer
	if err := backup.WriteMarkdown(&buf, svc.Roster.Snapshot(), backup.MarkdownOptions{Location: time.Local}); err != nil {
		return bridge.ErrorResult("markdown export failed: " + err.Error())
	}
	return buf.String()
}

// exportFileName: [format string] json|csv|md
func exportFileName(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return bridge.ErrorResult("exportFileName requires 1 arg: format")
	}
	return backup.FileName(backup.Format(args[0].String()), time.Now())
}

func dataSize(this js.Value, args []js.Value) interface{} {
	if res := requireArgs("dataSize", args, 0); res != nil {
		return res
	}
	size, err := backup.DataSize(svc.Roster.Snapshot())
	if err != nil {
		return bridge.CodeResult(err)
	}
	return bridge.JSONResult(map[string]interface{}{
		"bytes": size.Bytes,
		"kb":    size.KB,
		"mb":    size.MB,
		"label": size.String(),
	})
}

func createAutoBackup(this js.Value, args []js.Value) interface{} {
	if res := requireArgs("createAutoBackup", args, 0); res != nil {
		return res
	}
	slot, err := svc.Backup.Create(context.Background(), svc.Roster)
	if err != nil {
		return bridge.CodeResult(err)
	}
	return bridge.JSONResult(map[string]string{"timestamp": slot.Timestamp})
}

func restoreAutoBackup(this js.Value, args []js.Value) interface{} {
	if res := requireArgs("restoreAutoBackup", args, 0); res != nil {
		return res
	}
	if err := svc.Backup.Restore(context.Background(), svc.Roster); err != nil {
		return bridge.CodeResult(err)
	}
	return bridge.SuccessResult("restored")
}

func lastAutoBackup(this js.Value, args []js.Value) interface{} {
	if res := requireArgs("lastAutoBackup", args, 0); res != nil {
		return res
	}
	t, err := svc.Backup.Last(context.Background())
	if err != nil {
		return bridge.CodeResult(err)
	}
	return bridge.JSONResult(map[string]string{"timestamp": t.Format(time.RFC3339)})
}

func resetData(this js.Value, args []js.Value) interface{} {
	if res := requireArgs("resetData", args, 0); res != nil {
		return res
	}
	if err := svc.Roster.Reset(); err != nil {
		return bridge.CodeResult(err)
	}
	return bridge.SuccessResult("reset")
}

// =============================================================================
// Helpers
// =============================================================================

// requireArgs checks initialization and argument count. Returns nil when the
// call may proceed.
func requireArgs(name string, args []js.Value, n int) interface{} {
	if svc == nil {
		return bridge.ErrorResult(name + ": not initialized (call initialize first)")
	}
	if len(args) < n {
		return bridge.ErrorResult(fmt.Sprintf("%s requires %d args", name, n))
	}
	return nil
}

// makePromise creates a JS Promise and returns its resolve and reject functions.
func makePromise() (promise js.Value, resolve js.Value, reject js.Value) {
	var resolveFn, rejectFn js.Value
	handler := js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		resolveFn = args[0]
		rejectFn = args[1]
		return nil
	})
	defer handler.Release()

	promise = js.Global().Get("Promise").New(handler)
	return promise, resolveFn, rejectFn
}
