package common

// AuthorizationHeaderName carries the gallery session token on HTTP requests.
const AuthorizationHeaderName = "Authorization"

// AccessCodeLength is the number of characters in a gallery access code.
const AccessCodeLength = 6

// AccessCodeAlphabet holds uppercase letters and digits without the easily
// confused 0/O and 1/I.
const AccessCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
