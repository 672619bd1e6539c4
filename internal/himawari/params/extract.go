package params

import (
	"regexp"
	"strings"
)

// Keyword extraction backs the NLU fallback path: when the language model
// is unavailable or times out, these deterministic rules pull whatever
// parameters are plainly present in the message.

var (
	instanceTypeRe = regexp.MustCompile(`(t3\.\w+|m5\.\w+|c5\.\w+|r5\.\w+)`)
	storageRe      = regexp.MustCompile(`(\d+)\s*gb`)
	bareNumberRe   = regexp.MustCompile(`^(\d+)$`)
	bucketNameRe   = regexp.MustCompile(`bucket\s+(?:called|named)?\s*([a-z0-9][a-z0-9.\-]*)`)
	functionRes    = []*regexp.Regexp{
		regexp.MustCompile(`function\s+called\s+([a-zA-Z0-9][a-zA-Z0-9\-_]*)`),
		regexp.MustCompile(`function\s+named\s+([a-zA-Z0-9][a-zA-Z0-9\-_]*)`),
		regexp.MustCompile(`lambda\s+function\s+([a-zA-Z0-9][a-zA-Z0-9\-_]*)`),
		regexp.MustCompile(`function\s+([a-zA-Z0-9][a-zA-Z0-9\-_]*)`),
		regexp.MustCompile(`lambda\s+([a-zA-Z0-9][a-zA-Z0-9\-_]*)`),
	}
)

var knownRegions = []string{"us-east-1", "us-west-2", "eu-west-1", "ap-south-1"}

// ExtractEnvironment finds an environment mention, or "".
func ExtractEnvironment(text string) string {
	text = strings.ToLower(text)
	switch {
	case strings.Contains(text, "dev"):
		return "dev"
	case strings.Contains(text, "qa"), strings.Contains(text, "quality"), strings.Contains(text, "test"):
		return "qa"
	case strings.Contains(text, "prod"):
		return "prod"
	}
	return ""
}

// ExtractEC2 pulls EC2 parameters out of free text.
func ExtractEC2(text string) []Update {
	text = strings.ToLower(strings.TrimSpace(text))
	var out []Update

	if env := ExtractEnvironment(text); env != "" {
		out = append(out, Update{FieldEnvironment, env})
	}
	if m := instanceTypeRe.FindStringSubmatch(text); m != nil {
		out = append(out, Update{FieldInstanceType, m[1]})
	}
	switch {
	case strings.Contains(text, "ubuntu"):
		out = append(out, Update{FieldOperatingSystem, "ubuntu"})
	case strings.Contains(text, "amazon") && strings.Contains(text, "linux"):
		out = append(out, Update{FieldOperatingSystem, "amazon-linux"})
	case strings.Contains(text, "windows"):
		out = append(out, Update{FieldOperatingSystem, "windows"})
	}
	if m := storageRe.FindStringSubmatch(text); m != nil {
		if sizeInRange(m[1]) {
			out = append(out, Update{FieldStorageSize, m[1]})
		}
	} else if m := bareNumberRe.FindStringSubmatch(text); m != nil && sizeInRange(m[1]) {
		out = append(out, Update{FieldStorageSize, m[1]})
	}
	if region := extractRegion(text); region != "" {
		out = append(out, Update{FieldRegion, region})
	}
	return out
}

// ExtractS3 pulls bucket parameters out of free text. Bucket names are
// checked against the S3 naming rules; a name that violates them is
// simply not extracted.
func ExtractS3(text string) []Update {
	text = strings.ToLower(strings.TrimSpace(text))
	var out []Update

	if m := bucketNameRe.FindStringSubmatch(text); m != nil && ValidBucketName(m[1]) {
		out = append(out, Update{FieldBucketName, m[1]})
	}
	if env := ExtractEnvironment(text); env != "" {
		out = append(out, Update{FieldEnvironment, env})
	}
	if region := extractRegion(text); region != "" {
		out = append(out, Update{FieldRegion, region})
	}
	return out
}

// ExtractLambda pulls function parameters out of free text.
func ExtractLambda(text string) []Update {
	text = strings.ToLower(strings.TrimSpace(text))
	var out []Update

	for _, re := range functionRes {
		if m := re.FindStringSubmatch(text); m != nil && ValidFunctionName(m[1]) {
			out = append(out, Update{FieldFunctionName, m[1]})
			break
		}
	}
	if rt := extractRuntime(text); rt != "" {
		out = append(out, Update{FieldRuntime, rt})
	}
	if env := ExtractEnvironment(text); env != "" {
		out = append(out, Update{FieldEnvironment, env})
	}
	if region := extractRegion(text); region != "" {
		out = append(out, Update{FieldRegion, region})
	}
	return out
}

// Extract dispatches to the service-specific extractor.
func Extract(svc Service, text string) []Update {
	switch svc {
	case ServiceS3:
		return ExtractS3(text)
	case ServiceLambda:
		return ExtractLambda(text)
	default:
		return ExtractEC2(text)
	}
}

// ValidBucketName applies the S3 naming constraints we enforce before
// ever talking to AWS.
func ValidBucketName(name string) bool {
	if len(name) < 3 || len(name) > 63 {
		return false
	}
	for _, edge := range []byte{'-', '.'} {
		if name[0] == edge || name[len(name)-1] == edge {
			return false
		}
	}
	return true
}

// ValidFunctionName applies the Lambda naming length constraint.
func ValidFunctionName(name string) bool {
	return len(name) >= 1 && len(name) <= 64
}

func extractRegion(text string) string {
	for _, region := range knownRegions {
		if strings.Contains(text, region) {
			return region
		}
	}
	return ""
}

func extractRuntime(text string) string {
	switch {
	case strings.Contains(text, "python3.11"):
		return "python3.11"
	case strings.Contains(text, "python3.10"):
		return "python3.10"
	case strings.Contains(text, "python"):
		return "python3.9"
	case strings.Contains(text, "nodejs20"):
		return "nodejs20.x"
	case strings.Contains(text, "nodejs18"), strings.Contains(text, "node"), strings.Contains(text, "javascript"):
		return "nodejs18.x"
	case strings.Contains(text, "java17"):
		return "java17"
	case strings.Contains(text, "java"):
		return "java11"
	case strings.Contains(text, "go"):
		return "go1.x"
	}
	return ""
}

func sizeInRange(s string) bool {
	// storageRe guarantees digits; the bound check is on magnitude only.
	if len(s) > 4 {
		return false
	}
	n := 0
	for _, c := range s {
		n = n*10 + int(c-'0')
	}
	return n >= 1 && n <= 2000
}
