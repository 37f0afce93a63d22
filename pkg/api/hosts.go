package api

// Remote endpoints. A Session created with protocol.WithBaseURL rewrites the
// scheme and host of every one of them.
const (
	urlWebAPI      = "https://webapi.115.com"
	urlLixian      = "https://lixian.115.com/lixian/"
	urlNav         = "https://my.115.com/"
	urlUploadInfo  = "https://proapi.115.com/app/uploadinfo"
	urlUploadInit  = "https://uplb.115.com/4.0/initupload.php"
	urlUploadToken = "https://uplb.115.com/3.0/gettoken.php"
)

// CookieURL is the URL credential cookies are scoped to.
const CookieURL = "https://115.com/"

// CookieDomain covers every remote host.
const CookieDomain = ".115.com"

// RootDirID is the id of the top-level directory.
const RootDirID = "0"
