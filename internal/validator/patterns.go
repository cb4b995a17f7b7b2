package validator

// dangerousInputPatterns are substrings that fail ValidateInput when
// found in any string value or object key. Substring screening is a
// defense-in-depth heuristic; the sandbox is the real isolation boundary.
var dangerousInputPatterns = []string{
	// Script injection
	"<script", "javascript:", "data:text/html",
	// Command injection
	"; rm -rf", "; cat /etc", "$(", "`", "&& ",
	// SQL injection
	"DROP TABLE", "DELETE FROM", "'; --", "1=1 --",
	// Path traversal
	"../", "..\\", "/etc/passwd", `C:\Windows\`,
	// XML injection
	"<![CDATA[", "<!ENTITY", "<!DOCTYPE",
	// Template injection
	"{{", "}}", "${", "<%=", "<%",
	// Potential serialized objects
	"O:8:", "a:2:", "__PHP_Incomplete_Class",
}

// dangerousCodePatterns fail ValidateCode: process/system/host-escape
// APIs, dynamic-code/eval entry points, and host surfaces the sandbox
// never exposes. Infinite-loop and resource-exhaustion forms are listed
// separately below.
var dangerousCodePatterns = []string{
	// Process manipulation
	"process.exit", "process.kill", "process.abort",
	// Deno system access
	"Deno.exit", "Deno.permissions", "Deno.chmod", "Deno.chown",
	"Deno.remove", "Deno.symlink", "Deno.truncate",
	"Deno.writeFile", "Deno.writeTextFile", "Deno.writeFileSync",
	"Deno.writeTextFileSync", "Deno.run", "Deno.Command",
	// Eval and dynamic code execution
	"eval(", "new Function(", "setTimeout(", "setInterval(",
	"Function(", "constructor.constructor",
	// Network access bypassing
	"fetch(", "XMLHttpRequest", "WebSocket",
	// DOM access (should not be available but check anyway)
	"document.", "window.", "navigator.", "location.",
	// Storage access
	"localStorage", "sessionStorage", "indexedDB",
	// Worker threads
	"Worker(", "SharedWorker(", "ServiceWorker",
	// Crypto access that might be used for mining
	"crypto.subtle", "SubtleCrypto",
	// Prototype manipulation
	"__proto__", "Object.prototype", "Function.prototype",
	// Imports that bypass sandboxing
	"import(", "require(", "module.exports",
}

var infiniteLoopPatterns = []string{
	"while(true)", "while (true)", "for(;;)", "for (;;)",
	"while(1)", "while (1)",
}

var resourceExhaustionPatterns = []string{
	"new Array(1000000000)", "new Uint8Array(1000000000)",
	"'.'.repeat(1000000000)", "Buffer.alloc(1000000000)",
}

var recursivePatterns = []string{
	"function x() { x(); }", "const x = () => x()",
	"function x() { return x(); }", "const x = () => { return x(); }",
}

var exportMarkers = []string{"export default", "export function", "export const"}

var allowedRuntimes = map[string]bool{
	"javascript": true,
	"typescript": true,
	"deno":       true,
}

var allowedPermissions = map[string]bool{
	"net": true, "fs": true, "env": true, "run": true, "ffi": true, "hrtime": true,
}
