package authorize

const (
	requestURISuffixLength int = 20

	defaultPARLifetimeSecs int64 = 60
)

const formPostResponseTemplate = `
<!DOCTYPE html>
<html>
<body onload="document.forms[0].submit()">
	<form method="post" action="{{ .RedirectURI }}">
		{{ range $key, $value := .Params }}
		<input type="hidden" name="{{ $key }}" value="{{ $value }}"/>
		{{ end }}
	</form>
</body>
</html>
`
