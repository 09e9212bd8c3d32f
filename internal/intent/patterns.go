package intent

// PatternSet is a list of literal phrases in several languages. A text matches
// the set when it contains any phrase on word boundaries, ignoring case and
// punctuation.
type PatternSet []string

// Affirmative answers from the guest.
var Affirmative = PatternSet{
	"yes", "yeah", "yep", "sure", "ok", "okay", "correct", "please do", "go ahead", "sounds good", "confirm", "confirmed", "of course", "absolutely",
	"sí", "si", "claro", "dale", "de acuerdo", "vale", "adelante", "confirmo", "por supuesto",
	"sim", "pode ser", "com certeza", "isso", "certo",
	"oui", "d accord", "bien sûr",
	"ja", "genau", "einverstanden",
	"certo", "va bene", "d accordo",
}

// CloseIntent: the guest is wrapping up the conversation.
var CloseIntent = PatternSet{
	"bye", "goodbye", "that s all", "that is all", "nothing else", "no thanks", "thanks that s it", "have a good day", "see you",
	"adiós", "adios", "chao", "hasta luego", "eso es todo", "nada más", "nada mas", "gracias por todo",
	"tchau", "até logo", "ate logo", "só isso", "so isso", "obrigado por tudo", "obrigada por tudo",
	"au revoir", "c est tout", "bonne journée",
	"tschüss", "auf wiedersehen", "das war s",
	"arrivederci", "è tutto",
}

// WaitSignal: the guest asks the agent to hold on.
var WaitSignal = PatternSet{
	"wait", "hold on", "one moment", "one sec", "give me a minute", "just a moment", "let me check",
	"espera", "espere", "un momento", "un segundo", "dame un minuto",
	"espera aí", "um momento", "só um minuto",
	"attendez", "un instant",
	"moment bitte", "warte",
	"aspetta", "un attimo",
}

// WaitAck: the guest accepts that the agent needs time.
var WaitAck = PatternSet{
	"ok i ll wait", "i ll wait", "i can wait", "take your time", "no rush", "no problem i ll wait", "sure take your time",
	"espero", "quedo atento", "quedo atenta", "tranquilo", "sin prisa",
	"fico no aguardo", "aguardo", "sem pressa",
	"j attends", "prenez votre temps",
	"ich warte",
	"aspetto",
}

// StrongBook: explicit booking commands that confirm on their own.
var StrongBook = PatternSet{
	"book it", "book now", "make the reservation", "go ahead and book", "confirm the booking", "confirm the reservation", "reserve it",
	"reservalo", "resérvalo", "haz la reserva", "confirma la reserva", "quiero reservar ya",
	"pode reservar", "faça a reserva", "faz a reserva", "confirma a reserva",
	"réservez", "je confirme la réservation",
	"bitte buchen", "jetzt buchen",
	"prenota pure", "conferma la prenotazione",
}

// StrongCancel: explicit cancellation commands that confirm on their own.
var StrongCancel = PatternSet{
	"cancel it", "cancel my reservation", "cancel the reservation", "cancel my booking", "go ahead and cancel",
	"cancélala", "cancelala", "cancela la reserva", "cancela mi reserva",
	"pode cancelar", "cancela a reserva", "cancele a reserva",
	"annulez la réservation", "annulez ma réservation",
	"bitte stornieren", "stornieren sie",
	"cancella la prenotazione",
}

// AskedBookingConfirmation: the agent asked whether to proceed with a booking.
var AskedBookingConfirmation = PatternSet{
	"should i proceed", "shall i proceed", "proceed with the booking", "proceed with booking", "confirm the booking", "would you like me to book", "shall i book", "should i book", "do you want me to book", "want me to reserve",
	"procedo con la reserva", "desea que reserve", "confirmo la reserva", "quieres que reserve", "quiere que reserve",
	"posso prosseguir", "deseja que eu reserve", "confirmo a reserva", "quer que eu reserve",
	"voulez vous que je réserve", "je procède à la réservation",
	"soll ich buchen", "soll ich die buchung",
	"procedo con la prenotazione", "vuole che prenoti",
}

// AskedCancelConfirmation: the agent asked whether to cancel.
var AskedCancelConfirmation = PatternSet{
	"should i cancel", "shall i cancel", "confirm the cancellation", "want me to cancel", "proceed with the cancellation", "are you sure you want to cancel",
	"procedo con la cancelación", "confirma la cancelación", "desea cancelar", "quieres que cancele", "quiere que cancele",
	"confirma o cancelamento", "deseja cancelar", "quer que eu cancele",
	"voulez vous annuler", "confirmez l annulation",
	"soll ich stornieren",
	"vuole annullare", "confermi la cancellazione",
}

// AgentWaitPhrase: the agent told the guest to wait while it checks something.
var AgentWaitPhrase = PatternSet{
	"let me check", "one moment", "give me a moment", "just a moment", "i ll check", "i will check", "checking now", "bear with me",
	"déjame revisar", "dejame revisar", "un momento", "voy a revisar", "permíteme verificar", "permiteme verificar",
	"deixa eu verificar", "um momento", "vou verificar",
	"un instant", "je vérifie",
	"einen moment", "ich prüfe",
	"un attimo", "controllo subito",
}

// Salutation: bare greetings with no request attached.
var Salutation = PatternSet{
	"hi", "hello", "hey", "good morning", "good afternoon", "good evening",
	"hola", "buenas", "buenos días", "buenos dias", "buenas tardes", "buenas noches",
	"olá", "ola", "oi", "bom dia", "boa tarde", "boa noite",
	"bonjour", "bonsoir", "salut",
	"hallo", "guten tag", "guten morgen",
	"ciao", "buongiorno", "buonasera",
}
