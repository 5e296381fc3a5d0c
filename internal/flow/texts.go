package flow

// User-facing message templates. The assistant speaks informal Brasília
// Portuguese; every failure message offers a next action.
const (
	msgAskName = "Oi! Eu sou o I.aê, seu parceiro pra achar os melhores rolês de Brasília. 🍻 Antes de tudo: como você se chama?"

	msgAskIntent = "Bora lá! Você tá afim de um *bar* ou de um *restaurante* hoje?"

	msgIntentRetry = "Não peguei essa. 😅 Me fala: é *bar* ou *restaurante* que você procura?"

	msgResumeGreet = "Quanto tempo! 👋 Que bom te ver de novo por aqui. Bora achar um rolê? É *bar* ou *restaurante* hoje?"

	msgAskLocationType = "Show! Você quer algo *perto de você* agora, ou em *outra região* da cidade?"

	msgAskLocationPin = "Fechou! Me manda sua localização aqui pelo WhatsApp (clipe 📎 > Localização) que eu acho os melhores por perto."

	msgAskLocationText = "Beleza! Me fala o bairro, quadra ou endereço que você tá pensando."

	msgLocationTextRetry = "Hmm, não achei esse lugar no mapa. 🗺️ Tenta me falar de outro jeito, tipo o nome do bairro ou um ponto de referência."

	msgLocationRecovery = "Opa, me perdi na sua localização aqui. 😅 Bora de novo: me manda sua localização ou o nome do bairro."

	msgPendingLocationAck = "Recebi sua localização! 📍 Agora me fala: você quer um *bar* ou um *restaurante* por ali?"

	msgNoResults = "Poxa, não achei nada legal nessa região com esse perfil. 😔 Quer tentar outro estilo ou outra área?"

	msgAskSelection = "Me fala o número do lugar (1, 2 ou 3) que você quer saber mais. 😉"

	msgAskTopic = "Boa escolha! O que você quer saber: *preço*, *horário*, *telefone*, *site* ou *endereço*?"

	msgNumericNoCTA = "Você quis dizer um dos lugares? Me pede uma busca primeiro que aí eu te mostro as opções numeradas. 😄"

	msgAudioUnavailable = "Recebi seu áudio, mas ainda não consigo ouvir por aqui. 🙉 Me manda por texto?"

	msgAudioFailed = "Não consegui entender seu áudio dessa vez. 😅 Pode escrever pra mim?"

	msgHandlerPanic = "Ops, deu um nó aqui nos meus circuitos. 😵 Pode mandar de novo?"

	msgGenericFallback = "Tô aqui pra te ajudar a achar bar e restaurante bom em Brasília! 🍻 Me fala o que você procura, tipo \"quero um barzinho tranquilo\"."

	msgSmallTalk = "Tô suave, na atividade! 😄 E você? Bora achar um rolê: é *bar* ou *restaurante* hoje?"

	msgPlaceNotFound = "Não achei esse lugar por aqui. 🧐 Me fala o nome certinho ou pede uma busca que eu te mostro opções."

	msgResetAck = "Fechou, bora do zero! 🔄 Me fala: é *bar* ou *restaurante* hoje?"

	msgFeedbackThanks ="Boa demais! 🎉 Anotei aqui que o *%s* valeu a pena. Quando quiser outro rolê é só chamar!"

	msgFeedbackSorry = "Poxa, que pena! 😔 Anotei pra melhorar as próximas dicas. Bora tentar outro lugar?"

	msgResultsHeader = "Olha o que eu achei pra você: 👇"

	msgResultsFooter = "Me fala o número (1, 2 ou 3) pra saber mais, ou manda *mais* pra ver outras opções. 😉"

	msgNoMorePages = "Essas foram todas as opções que achei por aí! Quer tentar outra região ou outro estilo?"
)

// msgCarnival answers questions about carnival in Brasília.
const msgCarnival = `Carnaval em Brasília é coisa séria! 🎭
Os blocos tomam conta da cidade: Eixão do Lazer, Setor Comercial Sul e Vila Planalto são os points clássicos.
Me fala onde você vai estar que eu te indico os melhores bares pra esquentar ou continuar a festa!`

// msgLaunch answers questions about where the assistant operates.
const msgLaunch = `O I.aê nasceu aqui em Brasília e por enquanto é 100% candango! 🛸
Tô de olho em cada bar e restaurante do quadradinho. Me fala o que você procura que eu te mostro o melhor da cidade.`

// interview bridges acknowledge an answer before the next question.
var bridges = []string{"Boa! ", "Anotado! ", "Fechou! ", "Show! "}
