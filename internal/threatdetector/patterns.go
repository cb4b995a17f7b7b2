package threatdetector

// Each entry below is compiled as a regex. These lists are deliberately
// broad: the detector surfaces anomalies for review, it does not block
// execution on its own.

var suspiciousCodePatterns = []string{
	"eval", "Function", "new Function", "process.binding", "child_process",
	"require", "exec", "spawn", "fork", "Deno.core", "Deno.internal",
	"Deno.permissions", "__proto__", "constructor.constructor", "Object.constructor",
}

var networkScanningPatterns = []string{
	"for", "fetch", ".map", ".forEach", "ping", "traceroute", "nmap",
}

var cryptoMiningPatterns = []string{
	"CryptoNight", "hashPow", "miner.start", "mining.start", "cryptonight",
	"minero", "coinhive", "jsecoin", "webmining", "deepminer", "deepMiner",
	"coinlab", "cryptoloot", "crypto-loot", "cryptaloot", "webmine", "webminer",
}
