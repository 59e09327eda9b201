package idp

// AuthorizationDetailTypeCredential marks a rich-authorization entry that
// requests issuance of a verifiable credential.
const AuthorizationDetailTypeCredential = "openid_credential"

// AuthorizationDetail is one entry of the authorization_details parameter.
// Entries are free-form JSON objects; only the type field is interpreted
// here.
type AuthorizationDetail map[string]any

func (d AuthorizationDetail) Type() string {
	return d.String("type")
}

func (d AuthorizationDetail) String(key string) string {
	value, ok := d[key]
	if !ok {
		return ""
	}

	s, ok := value.(string)
	if !ok {
		return ""
	}

	return s
}

func (d AuthorizationDetail) IsCredential() bool {
	return d.Type() == AuthorizationDetailTypeCredential
}
