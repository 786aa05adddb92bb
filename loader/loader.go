package loader

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/samber/oops"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/nathoo/instancecore/engine/state"
)

// instanceFile is executed before every other file in the directory.
const instanceFile = "instance.lua"

// collector accumulates Lua definitions during file execution.
type collector struct {
	instance     *lua.LTable
	encounters   []rawNamed
	doors        []rawEntry
	creatures    []rawEntry
	props        []rawEntry
	variants     []rawEntry
	propVariants []rawEntry
	handlers     []rawHandler
	timers       []rawNamed
	counters     []rawCounter
	criteria     []rawCriteria
	timersActive *lua.LTable
}

// Load reads all .lua files from dir, compiles them into instance
// definitions, validates references, and returns the immutable Defs. The Lua
// VM is discarded after loading. Validation warnings go to log, which may be
// nil.
func Load(dir string, log *zap.Logger) (*state.Defs, error) {
	if log == nil {
		log = zap.NewNop()
	}
	errs := oops.In("loader").With("dir", dir)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errs.Wrapf(err, "reading instance directory %s", dir)
	}

	var luaFiles []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".lua") {
			luaFiles = append(luaFiles, e.Name())
		}
	}
	if len(luaFiles) == 0 {
		return nil, errs.Errorf("no .lua files found in %s", dir)
	}
	luaFiles = sortedLuaFiles(luaFiles)

	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer L.Close()
	openSafeLibs(L)
	sandbox(L)

	coll := &collector{}
	registerAPI(L, coll)

	for _, f := range luaFiles {
		if err := L.DoFile(filepath.Join(dir, f)); err != nil {
			return nil, errs.Wrapf(err, "executing %s", f)
		}
	}

	defs, problems, err := compile(coll)
	if err != nil {
		return nil, errs.Wrapf(err, "compiling instance data")
	}
	if err := validate(defs, log, problems...); err != nil {
		return nil, err
	}

	log.Debug("instance loaded",
		zap.String("instance", defs.Instance.Name),
		zap.Int("files", len(luaFiles)),
		zap.Int("encounters", len(defs.Encounters)),
		zap.Int("handlers", len(defs.Handlers)))
	return defs, nil
}

// openSafeLibs opens only the safe subset of Lua standard libraries.
func openSafeLibs(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
}

// sandbox removes dangerous globals and functions.
func sandbox(L *lua.LState) {
	dangerous := []string{
		"dofile", "loadfile", "load", "loadstring",
		"rawset", "rawget", "rawequal",
		"collectgarbage",
	}
	for _, name := range dangerous {
		L.SetGlobal(name, lua.LNil)
	}

	// Content must compile to the same definitions every time.
	if mathTbl := L.GetGlobal("math"); mathTbl != lua.LNil {
		if tbl, ok := mathTbl.(*lua.LTable); ok {
			tbl.RawSetString("random", lua.LNil)
			tbl.RawSetString("randomseed", lua.LNil)
		}
	}
}

// sortedLuaFiles returns .lua file names with instance.lua first and the
// rest sorted alphabetically. Encounter ids follow declaration order, so the
// order is part of the persisted format.
func sortedLuaFiles(files []string) []string {
	var first string
	var others []string
	for _, f := range files {
		if f == instanceFile {
			first = f
		} else {
			others = append(others, f)
		}
	}
	sort.Strings(others)
	if first != "" {
		return append([]string{first}, others...)
	}
	return others
}
