package report

import (
	"fmt"
	"html/template"

	"github.com/russross/blackfriday/v2"

	"github.com/menta2k/rock-classifier/pkg/types"
)

// Disclaimer is shown under every successful result.
const Disclaimer = "💡 **참고:** 이 결과는 AI가 이미지를 분석한 추정치이며, 실제 지질학적 분석을 대체할 수 없습니다."

var renderer = blackfriday.NewHTMLRenderer(blackfriday.HTMLRendererParameters{
	// Raw HTML in model output is dropped rather than echoed into the page.
	Flags: blackfriday.CommonHTMLFlags | blackfriday.SkipHTML,
})

// Markdown renders model text as HTML. The text itself is not altered or validated.
func Markdown(text string) template.HTML {
	out := blackfriday.Run([]byte(text),
		blackfriday.WithRenderer(renderer),
		blackfriday.WithExtensions(blackfriday.CommonExtensions|blackfriday.HardLineBreak),
	)
	return template.HTML(out)
}

// Notice is the user-facing description of a failed classification.
type Notice struct {
	Kind    types.ErrorKind `json:"kind"`
	Message string          `json:"message"`
	// Body holds the raw backend response, only for transport failures.
	Body    string          `json:"body,omitempty"`
}

// Describe translates err into a message for the user. backend names the vision service.
func Describe(err error, backend string) Notice {
	e, ok := types.AsError(err)
	if !ok {
		return Notice{Message: fmt.Sprintf("알 수 없는 오류가 발생했습니다: %v", err)}
	}

	n := Notice{Kind: e.Kind}
	switch e.Kind {
	case types.DecodeError:
		n.Message = fmt.Sprintf("이미지 파일을 처리하는 중 오류가 발생했습니다: %v", cause(e))
	case types.EncodingError:
		n.Message = fmt.Sprintf("이미지를 JPEG 형식으로 변환하는 중 오류가 발생했습니다: %v", cause(e))
	case types.TransportError:
		n.Message = fmt.Sprintf("%s API 요청 오류 발생: %v", backend, cause(e))
		n.Body = e.Body
	case types.StructuralError:
		n.Message = fmt.Sprintf("%s API 응답 형식 오류가 발생했습니다. (응답 데이터 구조를 확인해 주세요)", backend)
	case types.ConfigError:
		n.Message = fmt.Sprintf("🚨 오류: 설정이 올바르지 않습니다: %v", cause(e))
	default:
		n.Message = fmt.Sprintf("알 수 없는 오류가 발생했습니다: %v", cause(e))
	}
	return n
}

// Message is Describe flattened into one string.
func Message(err error, backend string) string {
	n := Describe(err, backend)
	if n.Body != "" {
		return n.Message + "\n서버 응답 본문: " + n.Body
	}
	return n.Message
}

func cause(e *types.Error) string {
	if e.Err != nil {
		if e.StatusCode != 0 {
			return fmt.Sprintf("%v (HTTP %d)", e.Err, e.StatusCode)
		}
		return e.Err.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return e.Op
}
