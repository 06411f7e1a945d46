package checker

import (
	"regexp"
	"strings"
)

// ignoredSchemes lists IANA-registered and commonly seen schemes that
// cannot be checked but should not count as errors. Schemes with their
// own checker (http, https, ftp, file, mailto, dns, news, snews, nntp,
// itms-services) are not listed here.
var ignoredSchemes = []string{
	// IANA permanent registrations.
	"aaa", "aaas", "about", "acap", "acct", "cap", "cid", "coap",
	"coaps", "crid", "data", "dav", "dict", "dtn", "example", "go",
	"gopher", "h323", "iax", "icap", "im", "imap", "info", "ipp",
	"ipps", "iris", `iris\.beep`, `iris\.lwz`, `iris\.xpc`, `iris\.xpcs`,
	"jabber", "ldap", "leaptofrogans", "mid", "msrp", "msrps", "mtqp",
	"mupdate", "nfs", "ni", "nih", "opaquelocktoken", "pkcs11", "pop",
	"pres", "reload", "rtsp", "rtsps", "rtspu", "service", "session",
	"shttp", "sieve", "sip", "sips", "sms", "snmp", `soap\.beep`,
	`soap\.beeps`, "stun", "stuns", "tag", "tel", "telnet", "tftp",
	"thismessage", "tip", "tn3270", "turn", "turns", "tv", "urn",
	"vemmi", "vnc", "ws", "wss", "xcon", "xcon-userid", `xmlrpc\.beep`,
	`xmlrpc\.beeps`, "xmpp", `z39\.50`, `z39\.50r`, `z39\.50s`,
	// IANA provisional registrations.
	"bitcoin", "chrome", "chrome-extension", "content", "cvs",
	"ed2k", "facetime", "feed", "finger", "fish", "geo", "git",
	"gtalk", "ham", "icon", "ipn", "irc", "irc6", "ircs", "itms",
	"jar", "keyparc", "lastfm", "ldaps", "magnet", "maps", "market",
	"message", "mms", "ms-help", "ms-settings", "msnim", "mumble",
	"notes", "odbc", "oid", "palm", "payto", "proxy", "psyc", "query",
	"res", "resource", "rmi", "rsync", "rtmfp", "rtmp", "secondlife",
	"sftp", "sgn", "skype", "slack", "smb", "smtp", "soldat",
	"spotify", "ssh", "steam", "svn", "teamspeak", "udp", "unreal",
	"ut2004", "ventrilo", "view-source", "vscode", "vscode-insiders",
	"webcal", "whatsapp", "wtai", "wyciwyg", "xfire", "xri", "ymsgr",
	// IANA historical registrations.
	"fax", "filesystem", "mailserver", "modem", "pack", "prospero",
	"videotex", "wais",
	// Other schemes found in the wild.
	"callto", "clsid", "find", "isbn", "javascript",
}

var ignoredSchemesRe = regexp.MustCompile(`(?i)^(` + strings.Join(ignoredSchemes, "|") + `)$`)

// checkUnknown handles URLs whose scheme has no checker. Registered
// schemes are accepted without a connection; everything else is a
// syntax error.
func (c *Checker) checkUnknown(u *URL) {
	if ignoredSchemesRe.MatchString(u.Scheme) {
		u.AddInfo("%s URL ignored.", capitalize(u.Scheme))
		u.SetResult("ignored", true)
		u.State = StateIgnored
		return
	}
	u.SetInvalid("URL is unrecognized or has invalid syntax")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
