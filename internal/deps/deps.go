// Package deps resolves missing dependencies between build iterations.
//
// Missing-module errors are the most common "approved-looking code that
// does not actually run" failure. The resolver extracts module names
// from verification error text, maps them to their install targets, and
// installs them directly, so the loop does not spend an agent round on a
// one-command fix.
package deps

import (
	"regexp"
	"sort"
	"strings"
)

// moduleToPackage maps import names to the package that provides them
// when the two differ.
var moduleToPackage = map[string]string{
	"PIL":      "Pillow",
	"cv2":      "opencv-python",
	"sklearn":  "scikit-learn",
	"yaml":     "PyYAML",
	"bs4":      "beautifulsoup4",
	"dotenv":   "python-dotenv",
	"gi":       "PyGObject",
	"attr":     "attrs",
	"serial":   "pyserial",
	"usb":      "pyusb",
	"jwt":      "PyJWT",
	"lxml":     "lxml",
	"magic":    "python-magic",
	"dateutil": "python-dateutil",
}

var (
	moduleNotFoundPattern = regexp.MustCompile(`ModuleNotFoundError:\s*No module named ['"]([^'"]+)['"]`)
	importErrorPattern    = regexp.MustCompile(`ImportError:\s*cannot import name .+ from ['"]([^'"]+)['"]`)
	nodeModulePattern     = regexp.MustCompile(`Cannot find module ['"]([^'"]+)['"]`)
)

// MissingModules extracts missing module names from error output.
//
// Recognized shapes:
//
//	ModuleNotFoundError: No module named 'foo'
//	ImportError: cannot import name 'bar' from 'foo'
//	Cannot find module 'foo'        (Node.js)
//
// Python dotted paths collapse to the top-level package. Node relative
// and absolute paths are not installable and are skipped.
func MissingModules(errorText string) []string {
	modules := map[string]struct{}{}

	for _, m := range moduleNotFoundPattern.FindAllStringSubmatch(errorText, -1) {
		modules[strings.SplitN(m[1], ".", 2)[0]] = struct{}{}
	}
	for _, m := range importErrorPattern.FindAllStringSubmatch(errorText, -1) {
		modules[strings.SplitN(m[1], ".", 2)[0]] = struct{}{}
	}
	for _, m := range nodeModulePattern.FindAllStringSubmatch(errorText, -1) {
		if strings.HasPrefix(m[1], ".") || strings.HasPrefix(m[1], "/") {
			continue
		}
		modules[m[1]] = struct{}{}
	}

	out := make([]string, 0, len(modules))
	for mod := range modules {
		out = append(out, mod)
	}
	sort.Strings(out)
	return out
}

// packageFor maps a module name to its install target.
func packageFor(module string) string {
	if pkg, ok := moduleToPackage[module]; ok {
		return pkg
	}
	return module
}
