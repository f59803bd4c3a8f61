package client

// RockPrompt asks for four labeled fields, in Korean, in a fixed Markdown template.
const RockPrompt = `
    당신은 세계적인 지질학자입니다. 제공된 이미지의 암석을 분석하고, 
    다음 네 가지 정보(암석 이름, 유형, 설명, 정확도 추정)를 한국어로만 제공해야 합니다.
    응답은 아래의 Markdown 형식 틀을 엄격하게 지켜야 합니다.

    **암석 이름:** [분류된 암석의 이름]
    **암석 유형:** [화성암, 퇴적암, 또는 변성암]
    **설명:** [암석의 주요 특징 2-3가지에 대한 간략한 설명]
    **정확도 추정:** [당신의 전문 지식에 기반한 분류 정확도(%)]
    `

// SystemInstruction reinforces the assistant role and output contract.
const SystemInstruction = "You are a professional geologist. Analyze the provided rock image and provide a classification in the specified Korean markdown format."

// Field labels requested by RockPrompt, in template order.
const (
	LabelName       = "암석 이름:"
	LabelType       = "암석 유형:"
	LabelDesc       = "설명:"
	LabelConfidence = "정확도 추정:"
)

// FieldLabels lists the four labels in template order.
var FieldLabels = []string{LabelName, LabelType, LabelDesc, LabelConfidence}
